package flatten

import (
	"reflect"
	"testing"
)

// fullMeasurement is a Mereni element exercising the instrument-data branches:
// OBD-controlled system, readiness monitors, petrol outlets, and notes.
const fullMeasurement = `
<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1">
  <CisloProtokolu>EM-100</CisloProtokolu>
  <DatumProhlidky>2021-06-01</DatumProhlidky>
  <Stanice><Cislo>37.02</Cislo></Stanice>
  <CasoveUdaje><Zahajeni>09:00</Zahajeni><Ukonceni>09:20</Ukonceni></CasoveUdaje>
  <PristrojData>
    <prohlidka cisloProtokolu="ACK-100" datumProhlidky="2021-06-01">
      <mericiPristroj vyrobce="ATAL" typ="AT-505" OBD="true"/>
      <poznamka>prvni</poznamka>
      <poznamka>druha</poznamka>
    </prohlidka>
    <vozidlo>
      <VIN>VF1TEST</VIN>
      <palivo>BA</palivo>
    </vozidlo>
    <vysledekMereni vysledekMIL="OK">
      <vyhovuje pristiProhlidka="2023-06-01"/>
    </vysledekMereni>
    <emisniSystem>
      <rizenyOBD>
        <komunikacniProtokol>ISO15765</komunikacniProtokol>
        <pocetDTC>0</pocetDTC>
        <readiness vysledek="OK">
          <OBDzazeh>
            <MISF podporovano="true" otestovano="true"/>
          </OBDzazeh>
        </readiness>
      </rizenyOBD>
    </emisniSystem>
    <detailBenzin palivo="BA">
      <vyusteni>
        <otackyVolnobezne>
          <CO hodnota="0.01" vysledek="OK"><max hodnota="0.3" rucniZadani="false"/></CO>
        </otackyVolnobezne>
      </vyusteni>
      <vyusteni>
        <otackyVolnobezne>
          <CO hodnota="0.02" vysledek="OK"/>
        </otackyVolnobezne>
      </vyusteni>
    </detailBenzin>
  </PristrojData>
</Mereni>`

// TestMeasurement_ColumnUniformity verifies that a rich element and an empty
// element produce the same canonical column set.
func TestMeasurement_ColumnUniformity(t *testing.T) {
	t.Parallel()

	full := Measurement(parseElement(t, fullMeasurement))
	empty := Measurement(parseElement(t, `<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1"/>`))

	if !reflect.DeepEqual(full.Columns(), empty.Columns()) {
		t.Fatal("column sets differ between rich and empty elements")
	}
	if !reflect.DeepEqual(full.Columns(), Columns(TableMeasurements)) {
		t.Fatal("columns differ from the canonical measurements list")
	}
}

// TestMeasurement_EmissionSystem verifies the system-kind derivation and the
// DTC count fallback from the OBD block to the plain controlled block.
func TestMeasurement_EmissionSystem(t *testing.T) {
	t.Parallel()

	r := Measurement(parseElement(t, fullMeasurement))
	if v, _ := r.Get("EmisniSystem"); v.Str != "Rizeny_Obd" {
		t.Fatalf("EmisniSystem = %+v, want Rizeny_Obd", v)
	}
	if v, _ := r.Get("Obd_PocetDtc"); !v.Valid || v.Str != "0" {
		t.Fatalf("Obd_PocetDtc = %+v, want 0", v)
	}

	controlled := `
<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1">
  <PristrojData>
    <emisniSystem>
      <rizeny><pocetDTC>3</pocetDTC></rizeny>
    </emisniSystem>
  </PristrojData>
</Mereni>`
	r = Measurement(parseElement(t, controlled))
	if v, _ := r.Get("EmisniSystem"); v.Str != "Rizeny" {
		t.Fatalf("EmisniSystem = %+v, want Rizeny", v)
	}
	if v, _ := r.Get("Obd_PocetDtc"); !v.Valid || v.Str != "3" {
		t.Fatalf("fallback Obd_PocetDtc = %+v, want 3", v)
	}

	uncontrolled := `
<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1">
  <PristrojData><emisniSystem><nerizeny/></emisniSystem></PristrojData>
</Mereni>`
	r = Measurement(parseElement(t, uncontrolled))
	if v, _ := r.Get("EmisniSystem"); v.Str != "Nerizeny" {
		t.Fatalf("EmisniSystem = %+v, want Nerizeny", v)
	}
}

// TestMeasurement_PassByPresence verifies that the pass verdict is encoded by
// the presence of the vyhovuje element, not by its content.
func TestMeasurement_PassByPresence(t *testing.T) {
	t.Parallel()

	r := Measurement(parseElement(t, fullMeasurement))
	if v, _ := r.Get("Vysledek_Vyhovuje"); !v.Valid || v.Str != "true" {
		t.Fatalf("Vysledek_Vyhovuje = %+v, want true", v)
	}
	if v, _ := r.Get("PristiProhlidka"); v.Str != "2023-06-01" {
		t.Fatalf("PristiProhlidka = %+v, want 2023-06-01", v)
	}

	r = Measurement(parseElement(t, `<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1"/>`))
	if v, _ := r.Get("Vysledek_Vyhovuje"); v.Valid {
		t.Fatalf("Vysledek_Vyhovuje = %+v, want absent", v)
	}
}

// TestMeasurement_Outlets verifies positional outlet flattening: values land
// in their index slot and the remaining slots exist with absent values.
func TestMeasurement_Outlets(t *testing.T) {
	t.Parallel()

	r := Measurement(parseElement(t, fullMeasurement))
	if v, _ := r.Get("Benzin_Vyusteni0_OtackyVolnobezne_CO_Hodnota"); v.Str != "0.01" {
		t.Fatalf("outlet 0 CO = %+v, want 0.01", v)
	}
	if v, _ := r.Get("Benzin_Vyusteni0_OtackyVolnobezne_CO_Max_Hodnota"); v.Str != "0.3" {
		t.Fatalf("outlet 0 CO max = %+v, want 0.3", v)
	}
	if v, _ := r.Get("Benzin_Vyusteni1_OtackyVolnobezne_CO_Hodnota"); v.Str != "0.02" {
		t.Fatalf("outlet 1 CO = %+v, want 0.02", v)
	}
	if v, ok := r.Get("Benzin_Vyusteni3_OtackyVolnobezne_CO_Hodnota"); !ok || v.Valid {
		t.Fatalf("outlet 3 CO = %+v, %v; want present column, absent value", v, ok)
	}
}

// TestMeasurement_Notes verifies that notes join with newlines and that an
// inspection element without notes yields a present empty string, unlike a
// missing inspection element.
func TestMeasurement_Notes(t *testing.T) {
	t.Parallel()

	r := Measurement(parseElement(t, fullMeasurement))
	if v, _ := r.Get("Poznamky"); !v.Valid || v.Str != "prvni\ndruha" {
		t.Fatalf("Poznamky = %+v, want joined notes", v)
	}

	noNotes := `
<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1">
  <PristrojData><prohlidka/></PristrojData>
</Mereni>`
	r = Measurement(parseElement(t, noNotes))
	if v, _ := r.Get("Poznamky"); !v.Valid || v.Str != "" {
		t.Fatalf("Poznamky = %+v, want present empty", v)
	}

	r = Measurement(parseElement(t, `<Mereni xmlns="istp:opendata:schemas:MereniSeznam:v1"/>`))
	if v, _ := r.Get("Poznamky"); v.Valid {
		t.Fatalf("Poznamky = %+v, want absent", v)
	}
}

// TestMeasurement_Readiness verifies a monitor state lands under its family
// prefix.
func TestMeasurement_Readiness(t *testing.T) {
	t.Parallel()

	r := Measurement(parseElement(t, fullMeasurement))
	if v, _ := r.Get("Obd_Readiness_Vysledek"); v.Str != "OK" {
		t.Fatalf("readiness result = %+v, want OK", v)
	}
	if v, _ := r.Get("Obd_Readiness_Zazeh_MISF_Podporovano"); v.Str != "true" {
		t.Fatalf("MISF supported = %+v, want true", v)
	}
	if v, ok := r.Get("Obd_Readiness_Vznet_NOX_Otestovano"); !ok || v.Valid {
		t.Fatalf("diesel NOX = %+v, %v; want present column, absent value", v, ok)
	}
}
