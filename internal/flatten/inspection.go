package flatten

import (
	"github.com/opendatalabcz/emissions-etl/internal/record"
	"github.com/opendatalabcz/emissions-etl/internal/xmltree"
)

// Defect provenance tags, naming the sub-structure a defect was found in.
const (
	DefectSourceTechnical = "TechnickaCast"
	DefectSourceTsk       = "TskCast"
	DefectSourceResult    = "Vysledek"
)

// Inspection flattens one Prohlidka element into its wide record plus the
// child defect, control-action and ADR-type records. An element without a
// protocol number is discarded entirely, children included: the protocol
// number is the join key of every child table, and a record that cannot be
// joined is worse than a missing one.
func Inspection(el *xmltree.Node) (insp *record.Record, defects, actions, adrTypes []*record.Record) {
	protocol := el.ChildText(NSInspection, "CisloProtokolu")
	if !protocol.Valid || protocol.Str == "" {
		return nil, nil, nil, nil
	}

	insp = inspectionRecord(el, protocol)

	tech := el.Find(NSInspection, "TechnickaCast")
	tsk := el.Find(NSInspection, "TskCast")
	res := el.Find(NSInspection, "Vysledek")

	defects = append(defects, defectRecords(tech.Find(NSInspection, "ZavadaSeznam"), protocol, DefectSourceTechnical)...)
	defects = append(defects, defectRecords(tsk.Find(NSInspection, "ZavadaSeznam"), protocol, DefectSourceTsk)...)
	defects = append(defects, defectRecords(res.Find(NSInspection, "ZavadaSeznam"), protocol, DefectSourceResult)...)
	actions = actionRecords(tsk.Find(NSInspection, "KontrolniUkonSeznam"), protocol)
	adrTypes = adrTypeRecords(el.Find(NSInspection, "AdrCast", "TypVozidlaADRSeznam"), protocol)

	return insp, defects, actions, adrTypes
}

func inspectionRecord(el *xmltree.Node, protocol record.Value) *record.Record {
	r := record.New()
	r.Set("CisloProtokolu", protocol)
	r.Set("DatumProhlidky", el.ChildText(NSInspection, "DatumProhlidky"))
	r.Merge(station(el.Find(NSInspection, "Stanice"), "Prohlidka"))
	r.Merge(timeWindow(el.Find(NSInspection, "CasoveUdaje"), "Prohlidka"))
	r.Set("Prohlidka_OdpovednaOsoba", el.ChildText(NSInspection, "OdpovednaOsoba"))
	r.Set("DruhProhlidky", el.ChildText(NSInspection, "DruhProhlidky"))
	r.Set("RozsahProhlidky", el.ChildText(NSInspection, "RozsahProhlidky"))
	r.Merge(adminCorrection(el.Find(NSInspection, "AdministrativniOprava")))
	r.Merge(vehicle(el.Find(NSInspection, "Vozidlo")))
	r.Merge(registration(el.Find(NSInspection, "Registrace")))
	r.Merge(emissionsPart(el.Find(NSInspection, "EmisniCast")))
	r.Merge(technicalPart(el.Find(NSInspection, "TechnickaCast")))
	r.Merge(adrPart(el.Find(NSInspection, "AdrCast")))
	r.Merge(tskPart(el.Find(NSInspection, "TskCast")))
	r.Merge(inspectionResult(el.Find(NSInspection, "Vysledek")))
	return r
}

// station covers the shared station block; the prefix keeps its two uses
// (inspection site, emissions site) from colliding.
func station(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	r.Set(prefix+"_Stanice_Cislo", n.ChildText(NSInspection, "Cislo"))
	r.Set(prefix+"_Stanice_Kraj", n.ChildText(NSInspection, "Kraj"))
	r.Set(prefix+"_Stanice_ORP", n.ChildText(NSInspection, "ORP"))
	r.Set(prefix+"_Stanice_Obec", n.ChildText(NSInspection, "Obec"))
	return r
}

func timeWindow(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	r.Set(prefix+"_Zahajeni", n.ChildText(NSInspection, "Zahajeni"))
	r.Set(prefix+"_Ukonceni", n.ChildText(NSInspection, "Ukonceni"))
	return r
}

func adminCorrection(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("AdministrativniOprava_CisloProtokolu", n.ChildText(NSInspection, "CisloProtokolu"))
	r.Set("AdministrativniOprava_DatumProhlidky", n.ChildText(NSInspection, "DatumProhlidky"))
	return r
}

func vehicle(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("Vozidlo_Vin", n.ChildText(NSInspection, "Vin"))
	r.Set("Vozidlo_Druh", n.ChildText(NSInspection, "Druh"))
	r.Set("Vozidlo_Kategorie", n.ChildText(NSInspection, "Kategorie"))
	r.Set("Vozidlo_Provedeni", n.ChildText(NSInspection, "Provedeni"))
	r.Set("Vozidlo_Znacka", n.ChildText(NSInspection, "Znacka"))
	r.Set("Vozidlo_ObchodniOznaceni", n.ChildText(NSInspection, "ObchodniOznaceni"))
	r.Set("Vozidlo_TypMotoru", n.ChildText(NSInspection, "TypMotoru"))
	return r
}

func registration(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("Registrace_DatumPrvni", n.ChildText(NSInspection, "DatumPrvniRegistrace"))
	r.Set("Registrace_Stat", n.ChildText(NSInspection, "Stat"))
	r.Set("Registrace_CisloDokladu", n.ChildText(NSInspection, "CisloDokladu"))
	return r
}

func emissionsPart(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("Emise_CisloProtokolu", n.ChildText(NSInspection, "CisloProtokolu"))
	r.Set("Emise_DatumProhlidky", n.ChildText(NSInspection, "DatumProhlidky"))
	r.Merge(station(n.Find(NSInspection, "Stanice"), "Emise"))
	r.Merge(timeWindow(n.Find(NSInspection, "CasoveUdaje"), "Emise"))
	r.Set("Emise_OdpovednaOsoba", n.ChildText(NSInspection, "OdpovednaOsoba"))
	r.Set("Emise_ZakladniPalivo", n.ChildText(NSInspection, "ZakladniPalivo"))
	r.Set("Emise_AlternativniPalivo", n.ChildText(NSInspection, "AlternativniPalivo"))
	r.Set("Emise_EmisniSystem", n.ChildText(NSInspection, "EmisniSystem"))
	r.Set("Emise_VyrobceMotoru", n.ChildText(NSInspection, "VyrobceMotoru"))
	r.Set("Emise_CisloMotoru", n.ChildText(NSInspection, "CisloMotoru"))
	r.Set("Emise_RokVyroby", n.ChildText(NSInspection, "RokVyroby"))
	return r
}

func technicalPart(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Merge(timeWindow(n.Find(NSInspection, "CasoveUdaje"), "Technicka"))
	r.Set("Technicka_OdpovednaOsoba", n.ChildText(NSInspection, "OdpovednaOsoba"))
	return r
}

func adrValidity(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("Adr_Platnost_Periodicka", n.ChildText(NSInspection, "Periodicka"))
	r.Set("Adr_Platnost_Meziperiodicka", n.ChildText(NSInspection, "Meziperiodicka"))
	return r
}

func adrPart(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Merge(timeWindow(n.Find(NSInspection, "CasoveUdaje"), "Adr"))
	r.Set("Adr_OdpovednaOsoba", n.ChildText(NSInspection, "OdpovednaOsoba"))
	r.Merge(adrValidity(n.Find(NSInspection, "Platnost")))
	r.Set("Adr_KodCisterny", n.ChildText(NSInspection, "KodCisterny"))
	r.Set("Adr_CisloOsvedceni", n.ChildText(NSInspection, "CisloOsvedceni"))
	r.Set("Adr_ZavadyText", n.ChildText(NSInspection, "ZavadyText"))
	r.Set("Adr_Poznamka", n.ChildText(NSInspection, "Poznamka"))
	return r
}

func tskPart(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Merge(timeWindow(n.Find(NSInspection, "CasoveUdaje"), "Tsk"))
	r.Set("Tsk_OdpovednaOsoba", n.ChildText(NSInspection, "OdpovednaOsoba"))
	return r
}

func inspectionResult(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("Vysledek_Odometr", n.ChildText(NSInspection, "Odometr"))
	r.Set("Vysledek_Poznamka", n.ChildText(NSInspection, "Poznamka"))
	r.Set("Vysledek_DatumPristiProhlidky", n.ChildText(NSInspection, "DatumPristiProhlidky"))
	r.Set("Vysledek_NalepkaVylepena", n.ChildText(NSInspection, "NalepkaVylepena"))
	r.Set("Vysledek_Celkovy", n.ChildText(NSInspection, "VysledekCelkovy"))
	return r
}

func defectRecords(seznam *xmltree.Node, protocol record.Value, source string) []*record.Record {
	var out []*record.Record
	for _, z := range seznam.FindAll(NSInspection, "Zavada") {
		out = append(out, defectRecord(z, protocol, source))
	}
	return out
}

func defectRecord(z *xmltree.Node, protocol record.Value, source string) *record.Record {
	r := record.New()
	r.Set("CisloProtokolu", protocol)
	r.Set("Zdroj", record.String(source))
	r.Set("Kod", z.ChildText(NSInspection, "Kod"))
	r.Set("Zavaznost", z.ChildText(NSInspection, "Zavaznost"))
	return r
}

func actionRecords(seznam *xmltree.Node, protocol record.Value) []*record.Record {
	var out []*record.Record
	for _, u := range seznam.FindAll(NSInspection, "KontrolniUkon") {
		out = append(out, actionRecord(u, protocol))
	}
	return out
}

func actionRecord(u *xmltree.Node, protocol record.Value) *record.Record {
	r := record.New()
	r.Set("CisloProtokolu", protocol)
	r.Set("Typ", u.ChildText(NSInspection, "Typ"))
	r.Set("Nevyhovujici", u.ChildText(NSInspection, "Nevyhovujici"))
	return r
}

func adrTypeRecords(seznam *xmltree.Node, protocol record.Value) []*record.Record {
	var out []*record.Record
	for _, t := range seznam.FindAll(NSInspection, "TypVozidlaADR") {
		out = append(out, adrTypeRecord(t, protocol))
	}
	return out
}

func adrTypeRecord(t *xmltree.Node, protocol record.Value) *record.Record {
	r := record.New()
	r.Set("CisloProtokolu", protocol)
	r.Set("TypVozidlaADR", t.TextValue())
	return r
}
