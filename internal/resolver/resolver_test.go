package resolver

import (
	"testing"
	"time"

	"github.com/allanpk716/creditor_letters/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(DefaultOptions())
	require.NoError(t, err)
	return r
}

func sampleContext() *domain.RecipientContext {
	return &domain.RecipientContext{
		Client: domain.Client{
			Reference:        "AZ-2024-17",
			FirstName:        "Max",
			LastName:         "Mustermann",
			Street:           "Hauptstraße 5",
			PostalCode:       "10115",
			City:             "Berlin",
			BirthDate:        "1985-03-07",
			MaritalStatus:    "married",
			EmploymentStatus: "angestellt",
			NumberOfChildren: 1,
			MonthlyNetIncome: float(2000),
		},
		Creditor: &domain.Creditor{
			Name:        "Inkasso GmbH",
			Address:     "Inkasso GmbH, Steindamm 71, 20099 Hamburg",
			ClaimAmount: 2500,
		},
		Settlement: domain.Settlement{TotalDebt: 10000, CreditorCount: 4},
		Position:   2,
		Now:        time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestResolver_DefaultBindings(t *testing.T) {
	r := newDefaultResolver(t)
	rc := sampleContext()

	tests := []struct {
		name string
		want string
	}{
		{"Name des Mandanten", "Max Mustermann"},
		{"Aktenzeichen des Mandanten", "AZ-2024-17"},
		{"Adresse des Mandanten", "Hauptstraße 5\n10115 Berlin"},
		{"Geburtstag", "07.03.1985"},
		{"Einkommen", "2.000,00"},
		{"Familienstand", "verheiratet"},
		{"Name des Gläubigers", "Inkasso GmbH"},
		{"Adresse des Creditors", "Steindamm 71\n20099 Hamburg"},
		{"Aktenzeichen der Forderung", "AZ-2024-17-2"},
		{"Forderungssumme", "2.500,00"},
		{"Quote des Gläubigers", "25,00%"},
		{"Tilgungsqoute", "25,00"},
		{"Nummer im Schuldenbereinigungsplan", "2"},
		{"Gessamtsumme Verschuldung", "10.000,00"},
		{"Gläubigeranzahl", "4"},
		{"pfändbares Einkommen", "370,00"},
		{"Summe für die Tilgung des Gläubigers monatlich", "92,50"},
		{"Summe für die Tilgung des Gläubigers insgesamt", "3.330,00"},
		{"Laufzeit", "36"},
		{"Gesamtbetrag der Tilgung", "13.320,00"},
		{"Heutiges Datum", "15.01.2024"},
		{"Datum in 14 Tagen", "29.01.2024"},
		{"Datum in 3 Monaten", "15.04.2024"},
		{"Beginn der Zahlung", "01.04.2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.name, rc)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_ExampleScenario(t *testing.T) {
	r := newDefaultResolver(t)
	rc := &domain.RecipientContext{
		Client:     domain.Client{FullName: "Max Mustermann"},
		Creditor:   &domain.Creditor{Name: "Bank", ClaimAmount: 1500},
		Settlement: domain.Settlement{TotalDebt: 6000},
	}

	values := r.Values(rc)
	assert.Equal(t, "Max Mustermann", values["Name des Mandanten"])
	assert.Equal(t, "1.500,00", values["Forderungssumme"])
	assert.Equal(t, "25,00%", values["Quote des Gläubigers"])
}

func TestResolver_CategoryOptionsExclusive(t *testing.T) {
	r := newDefaultResolver(t)
	options := []string{"ledig", "verheiratet", "geschieden", "verwitwet", "getrennt lebend"}

	for _, status := range []string{"", "ledig", "verheiratet", "divorced", "getrennt_lebend", "kompliziert"} {
		rc := sampleContext()
		rc.Client.MaritalStatus = status

		checked := 0
		for _, name := range options {
			v, ok := r.Resolve(name, rc)
			require.True(t, ok)
			if v == DefaultCheckedMark {
				checked++
			}
		}
		assert.Equal(t, 1, checked, status)
	}
}

func TestResolver_ChildrenOption(t *testing.T) {
	r := newDefaultResolver(t)
	rc := sampleContext()

	yes, _ := r.Resolve("Kinder ja", rc)
	no, _ := r.Resolve("Kinder nein", rc)
	assert.Equal(t, DefaultCheckedMark, yes)
	assert.Equal(t, DefaultUncheckedMark, no)

	rc.Client.NumberOfChildren = 0
	yes, _ = r.Resolve("Kinder ja", rc)
	assert.Equal(t, DefaultUncheckedMark, yes)
}

func TestResolver_AbsentValues(t *testing.T) {
	r := newDefaultResolver(t)
	rc := &domain.RecipientContext{Client: domain.Client{FullName: "Erika"}}

	for _, name := range []string{"Forderungssumme", "Name des Gläubigers", "Einkommen", "Aktenzeichen des Mandanten", "pfändbares Einkommen", "Nicht Vorhandenes Feld"} {
		_, ok := r.Resolve(name, rc)
		assert.False(t, ok, name)
	}
	_, ok := r.Resolve("Name des Mandanten", nil)
	assert.False(t, ok)
}

func TestResolver_ExplicitMonthlyPaymentWins(t *testing.T) {
	r := newDefaultResolver(t)
	rc := sampleContext()
	rc.Settlement.MonthlyPayment = float(50)

	v, ok := r.Resolve("monatlicher pfändbarer Betrag", rc)
	require.True(t, ok)
	assert.Equal(t, "50,00", v)
}

func TestResolver_ZeroTotalDebt(t *testing.T) {
	r := newDefaultResolver(t)
	rc := sampleContext()
	rc.Settlement.TotalDebt = 0

	v, ok := r.Resolve("Quote des Gläubigers", rc)
	require.True(t, ok)
	assert.Equal(t, "0,00%", v)
}

func TestResolver_NamesNormalized(t *testing.T) {
	r, err := NewResolver(Options{
		Bindings:  map[string]string{"  Name   des Mandanten ": "client.name", "Ort": "text:Hamburg"},
		Fallbacks: map[string]string{"Name des Mandanten": "Unbekannt"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name des Mandanten", "Ort"}, r.Names())

	v, ok := r.Resolve("Name des  Mandanten", &domain.RecipientContext{})
	require.True(t, ok)
	assert.Equal(t, "Unbekannt", v)

	v, _ = r.Resolve("Ort", &domain.RecipientContext{})
	assert.Equal(t, "Hamburg", v)
}

func TestResolver_Unlocatable(t *testing.T) {
	r, err := NewResolver(Options{
		Bindings: map[string]string{
			"Name des Mandanten": "client.name",
			"Name Mandant":       "client.name",
			"Mandant Name":       "client.name",
			"Forderungssumme":    "creditor.claim_amount",
			"Geburtstag":         "client.birth_date",
			"Laufzeit":           "settlement.plan_duration",
		},
		Optional: []string{"Geburtstag", "Name Mandant"},
	})
	require.NoError(t, err)

	tests := []struct {
		name      string
		unlocated []string
		want      []string
	}{
		{
			name:      "alias found",
			unlocated: []string{"Name Mandant", "Mandant Name"},
		},
		{
			name:      "whole group missing reports longest name",
			unlocated: []string{"Name des Mandanten", "Name Mandant", "Mandant Name"},
			want:      []string{"Name des Mandanten"},
		},
		{
			name:      "optional not reported",
			unlocated: []string{"Geburtstag"},
		},
		{
			name:      "required single token",
			unlocated: []string{"Forderungssumme", "Laufzeit"},
			want:      []string{"Forderungssumme", "Laufzeit"},
		},
		{
			name:      "unbound name kept",
			unlocated: []string{"Nicht  Vorhandenes Feld"},
			want:      []string{"Nicht Vorhandenes Feld"},
		},
		{
			name: "nothing missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Unlocatable(tt.unlocated))
		})
	}
}

func TestResolver_DefaultOptionalKeepsRequiredFields(t *testing.T) {
	r := newDefaultResolver(t)
	all := r.Names()

	got := r.Unlocatable(all)
	assert.Equal(t, []string{"Forderungssumme", "Name des Mandanten"}, got)
	assert.NotContains(t, DefaultOptional(), "Name des Mandanten")
	assert.Contains(t, DefaultOptional(), "Gläuibgeranzahl")
}

func TestNewResolver_InvalidBindings(t *testing.T) {
	tests := []struct {
		name     string
		bindings map[string]string
	}{
		{"unknown field", map[string]string{"A": "client.shoe_size"}},
		{"unknown family", map[string]string{"A": "category.religion"}},
		{"unknown option", map[string]string{"A": "option.marital_status.kompliziert"}},
		{"empty name", map[string]string{"  ": "client.name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Bindings = tt.bindings
			_, err := NewResolver(opts)
			assert.Error(t, err)
		})
	}
}

func TestNewResolver_DuplicateFamily(t *testing.T) {
	opts := DefaultOptions()
	opts.Families = append(opts.Families, opts.Families[0])
	_, err := NewResolver(opts)
	assert.Error(t, err)
}
