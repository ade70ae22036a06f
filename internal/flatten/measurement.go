package flatten

import (
	"fmt"
	"strings"

	"github.com/opendatalabcz/emissions-etl/internal/record"
	"github.com/opendatalabcz/emissions-etl/internal/xmltree"
)

// Readiness monitor families reported by OBD-capable instruments. Monitor
// names are element names in the source schema; dashes stay in the columns.
var readinessFamilies = []struct {
	column   string
	element  string
	monitors []string
}{
	{"Zazeh", "OBDzazeh", []string{"AC", "CAT-FUNC", "COMP", "EGR-VVT", "EVAP", "FUEL", "HCAT", "MISF", "O2S-FUNC", "O2S-HEAT", "SAS"}},
	{"Vznet", "OBDvznet", []string{"AC", "BOOST", "COMP", "DPF", "EGR-VVT", "EGS", "FUEL", "MISF", "NMHC", "NOX", "RESERVE"}},
	{"J1939", "J1939", []string{"AC", "BOOST", "CAT-FUNC", "COLD", "COMP", "DPF", "EGR-VVT", "EGS-FUNC", "EGS-HEAT", "EVAP", "FUEL", "HCAT", "MISF", "NM-HC", "NOX", "SAS"}},
}

// Petrol-line analytes; element and column names coincide.
var petrolAnalytes = []string{"CO", "CO2", "COCOOR", "HC", "LAMBDA", "N", "NOX", "O2", "TPS"}

// Diesel measured quantities as {column name, element name}.
var dieselQuantities = [][2]string{
	{"Tps", "TPS"},
	{"CasAkcelerace", "casAkcelerace"},
	{"Kourivost", "kourivost"},
	{"OtackyPrebehove", "otackyPrebehove"},
	{"OtackyVolnobezne", "otackyVolnobezne"},
	{"Teplota", "teplota"},
	{"TlakKomory", "tlakKomory"},
	{"TeplotaKomory", "teplotaKomory"},
}

// Diesel limit quantities under mereniVznetLimit as {column name, element name}.
var dieselLimits = [][2]string{
	{"Tps", "TPS"},
	{"CasAkcelerace", "casAkcelerace"},
	{"Kourivost", "kourivost"},
	{"KourivostRozpeti", "kourivostRozpeti"},
	{"OtackyPrebehove", "otackyPrebehove"},
	{"OtackyVolnobezne", "otackyVolnobezne"},
}

// The instrument schema caps repeated exhaust outlets, and smoke runs per
// outlet, at four; both groups are flattened positionally.
const maxOutlets = 4

// Measurement flattens one Mereni element into its very wide record. Unlike
// inspections there is no key-based discard: the instrument export carries no
// mandatory join key, so every element is kept.
func Measurement(el *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("CisloProtokolu", el.ChildText(NSMeasurement, "CisloProtokolu"))
	r.Set("DatumProhlidky", el.ChildText(NSMeasurement, "DatumProhlidky"))
	r.Set("StaniceCislo", el.ChildText(NSMeasurement, "Stanice", "Cislo"))
	r.Set("Zahajeni", el.ChildText(NSMeasurement, "CasoveUdaje", "Zahajeni"))
	r.Set("Ukonceni", el.ChildText(NSMeasurement, "CasoveUdaje", "Ukonceni"))
	r.Set("OdpovednaOsoba", el.ChildText(NSMeasurement, "OdpovednaOsoba"))

	data := el.Find(NSMeasurement, "PristrojData")
	prohlidka := data.Find(NSMeasurement, "prohlidka")
	r.Set("Prohlidka_CisloProtokolu", prohlidka.AttrValue("cisloProtokolu"))
	r.Set("Prohlidka_DatumProhlidky", prohlidka.AttrValue("datumProhlidky"))

	pristroj := prohlidka.Find(NSMeasurement, "mericiPristroj")
	r.Set("MericiPristroj_Vyrobce", pristroj.AttrValue("vyrobce"))
	r.Set("MericiPristroj_Typ", pristroj.AttrValue("typ"))
	r.Set("MericiPristroj_Verze", pristroj.AttrValue("verze"))
	r.Set("MericiPristroj_OBD", pristroj.AttrValue("OBD"))
	r.Set("MericiPristroj_VerzeSoftware", pristroj.AttrValue("verzeSoftware"))

	r.Set("Poznamky", notes(prohlidka))

	voz := data.Find(NSMeasurement, "vozidlo")
	r.Set("Vozidlo_Vin", voz.ChildText(NSMeasurement, "VIN"))
	r.Set("Vozidlo_Znacka", voz.ChildText(NSMeasurement, "tovazniZnacka"))
	r.Set("Vozidlo_ObchodniOznaceni", voz.ChildText(NSMeasurement, "typVozidla"))
	r.Set("Vozidlo_TypMotoru", voz.ChildText(NSMeasurement, "typMotoru"))
	r.Set("Vozidlo_CisloMotoru", voz.ChildText(NSMeasurement, "cisloMotoru"))
	r.Set("Vozidlo_Odometer", voz.ChildText(NSMeasurement, "stavTachometru"))
	r.Set("Vozidlo_RokVyroby", voz.ChildText(NSMeasurement, "rokVyroby"))
	r.Set("Vozidlo_DatumPrvniRegistrace", voz.ChildText(NSMeasurement, "datumPrvniRegistrace"))
	r.Set("Vozidlo_Palivo", voz.ChildText(NSMeasurement, "palivo"))

	verdict := data.Find(NSMeasurement, "vysledekMereni")
	r.Set("Vysledek_VisualniKontrola", verdict.AttrValue("vysledekVisualniKontroly"))
	r.Set("Vysledek_Readiness", verdict.AttrValue("vysledekReadiness"))
	r.Set("Vysledek_RidiciJednotka", verdict.AttrValue("vysledekRidiciJednotka"))
	r.Set("Vysledek_RidiciJednotkaStav", verdict.AttrValue("vysledekRidiciJednotkaStav"))
	r.Set("Vysledek_Mil", verdict.AttrValue("vysledekMIL"))
	r.Set("Vysledek_TesnostPlynovehoZarizeni", verdict.AttrValue("vysledekTesnostPlynovehoZarizeni"))

	// The pass verdict is encoded purely by element presence.
	pass := verdict.Find(NSMeasurement, "vyhovuje")
	passed := record.Value{}
	if pass != nil {
		passed = record.String("true")
	}
	r.Set("Vysledek_Vyhovuje", passed)
	r.Set("PristiProhlidka", pass.AttrValue("pristiProhlidka"))

	system := data.Find(NSMeasurement, "emisniSystem")
	obd := system.Find(NSMeasurement, "rizenyOBD")
	controlled := system.Find(NSMeasurement, "rizeny")
	kind := record.Value{}
	switch {
	case obd != nil:
		kind = record.String("Rizeny_Obd")
	case controlled != nil:
		kind = record.String("Rizeny")
	case system.Find(NSMeasurement, "nerizeny") != nil:
		kind = record.String("Nerizeny")
	}
	r.Set("EmisniSystem", kind)

	r.Set("Obd_KomunikacniProtokol", obd.ChildText(NSMeasurement, "komunikacniProtokol"))
	r.Set("Obd_Vin", obd.ChildText(NSMeasurement, "VIN"))
	// The DTC count lives under the OBD block for OBD-controlled systems and
	// under the plain controlled block otherwise.
	dtc := obd.ChildText(NSMeasurement, "pocetDTC")
	if !dtc.Valid {
		dtc = controlled.ChildText(NSMeasurement, "pocetDTC")
	}
	r.Set("Obd_PocetDtc", dtc)
	r.Set("Obd_VzdalenostDtc", obd.ChildText(NSMeasurement, "vzdalenostDTC"))
	r.Set("Obd_CasDtc", obd.ChildText(NSMeasurement, "casDTC"))
	r.Set("Obd_KontrolaMil", obd.ChildText(NSMeasurement, "kontrolaMIL"))

	readiness := obd.Find(NSMeasurement, "readiness")
	r.Set("Obd_Readiness_Vysledek", readiness.AttrValue("vysledek"))
	for _, fam := range readinessFamilies {
		parent := readiness.Find(NSMeasurement, fam.element)
		prefix := "Obd_Readiness_" + fam.column
		for _, mon := range fam.monitors {
			r.Merge(monitorState(parent.Find(NSMeasurement, mon), prefix+"_"+mon))
		}
	}

	r.Merge(petrolDetail(data.Find(NSMeasurement, "detailBenzin"), "Benzin"))
	r.Merge(dieselDetail(data.Find(NSMeasurement, "detailNafta")))
	r.Merge(gasDetail(data.Find(NSMeasurement, "detailPlyn")))

	return r
}

// notes joins the free-form instrument notes with newlines, keeping the
// distinction between "no inspection element" (absent) and "inspection
// element without notes" (present empty string).
func notes(prohlidka *xmltree.Node) record.Value {
	if prohlidka == nil {
		return record.Value{}
	}
	var parts []string
	for _, p := range prohlidka.FindAll(NSMeasurement, "poznamka") {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return record.String(strings.Join(parts, "\n"))
}

func resultAttrs(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	r.Set(prefix+"_Hodnota", n.AttrValue("hodnota"))
	r.Set(prefix+"_Vysledek", n.AttrValue("vysledek"))
	return r
}

func boundaryAttrs(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	r.Set(prefix+"_Hodnota", n.AttrValue("hodnota"))
	r.Set(prefix+"_RucniZadani", n.AttrValue("rucniZadani"))
	return r
}

// measured flattens one measured quantity: its own value and result
// attributes plus the min and max boundary children.
func measured(n *xmltree.Node, prefix string) *record.Record {
	r := resultAttrs(n, prefix)
	r.Merge(boundaryAttrs(n.Find(NSMeasurement, "min"), prefix+"_Min"))
	r.Merge(boundaryAttrs(n.Find(NSMeasurement, "max"), prefix+"_Max"))
	return r
}

func monitorState(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	r.Set(prefix+"_Podporovano", n.AttrValue("podporovano"))
	r.Set(prefix+"_Otestovano", n.AttrValue("otestovano"))
	return r
}

// petrolSpeed flattens the petrol analyte block measured at one engine speed.
func petrolSpeed(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	for _, a := range petrolAnalytes {
		r.Merge(measured(n.Find(NSMeasurement, a), prefix+"_"+a))
	}
	return r
}

// dieselRun flattens one diesel smoke measurement run.
func dieselRun(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	for _, q := range dieselQuantities {
		r.Merge(measured(n.Find(NSMeasurement, q[1]), prefix+"_"+q[0]))
	}
	return r
}

// petrolDetail flattens a petrol-shaped detail block; gas measurements reuse
// it under their own prefix. Absent outlets still emit their columns.
func petrolDetail(n *xmltree.Node, prefix string) *record.Record {
	r := record.New()
	r.Set(prefix+"_Palivo", n.AttrValue("palivo"))
	outlets := n.FindAll(NSMeasurement, "vyusteni")
	for i := 0; i < maxOutlets; i++ {
		outlet := xmltree.At(outlets, i)
		p := fmt.Sprintf("%s_Vyusteni%d", prefix, i)
		r.Merge(petrolSpeed(outlet.Find(NSMeasurement, "otackyVolnobezne"), p+"_OtackyVolnobezne"))
		r.Merge(petrolSpeed(outlet.Find(NSMeasurement, "otackyZvysene"), p+"_OtackyZvysene"))
	}
	return r
}

func dieselDetail(n *xmltree.Node) *record.Record {
	r := record.New()
	r.Set("Nafta_Palivo", n.AttrValue("palivo"))

	limits := n.Find(NSMeasurement, "mereniVznetLimit")
	for _, q := range dieselLimits {
		limit := limits.Find(NSMeasurement, q[1])
		r.Merge(boundaryAttrs(limit.Find(NSMeasurement, "min"), "Nafta_"+q[0]+"_Min"))
		r.Merge(boundaryAttrs(limit.Find(NSMeasurement, "max"), "Nafta_"+q[0]+"_Max"))
	}

	outlets := n.FindAll(NSMeasurement, "vyusteni")
	for i := 0; i < maxOutlets; i++ {
		outlet := xmltree.At(outlets, i)
		p := fmt.Sprintf("Nafta_Vyusteni%d", i)
		r.Merge(dieselRun(outlet.Find(NSMeasurement, "mereniPrumer"), p+"_MereniPrumer"))
		runs := outlet.FindAll(NSMeasurement, "mereni")
		for j := 0; j < maxOutlets; j++ {
			r.Merge(dieselRun(xmltree.At(runs, j), fmt.Sprintf("%s_Mereni%d", p, j)))
		}
	}
	return r
}

func gasDetail(n *xmltree.Node) *record.Record {
	r := petrolDetail(n, "Plyn")
	tank := n.Find(NSMeasurement, "kontrolaNadrzi", "nadrz")
	r.Set("Plyn_Nadrz_Vyrobce", tank.AttrValue("vyrobce"))
	r.Set("Plyn_Nadrz_Homologace", tank.AttrValue("homologace"))
	r.Set("Plyn_Nadrz_Zivotnost", tank.AttrValue("zivotnost"))
	r.Set("Plyn_Nadrz_Kontrola", tank.AttrValue("kontrola"))
	return r
}
