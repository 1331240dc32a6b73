package consolidation

import "testing"

func TestClassifyAccount(t *testing.T) {
	cases := []struct {
		code string
		want AccountClass
	}{
		{"1000", ClassAsset},
		{"2600", ClassAsset},
		{"4300", ClassLiability},
		{"5000", ClassEquity},
		{"6100", ClassExpense},
		{"7000", ClassRevenue},
		{"9999", ClassAsset},
		{"  1300 ", ClassAsset},
		{"", ClassAsset},
	}
	for _, tc := range cases {
		if got := ClassifyAccount(tc.code); got != tc.want {
			t.Fatalf("ClassifyAccount(%q) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestValidCurrency(t *testing.T) {
	valid := []string{"USD", "IDR", "EUR", " JPY "}
	for _, code := range valid {
		if !ValidCurrency(code) {
			t.Fatalf("expected %q to be a valid currency", code)
		}
	}
	invalid := []string{"", "US", "DOLLARS", "123"}
	for _, code := range invalid {
		if ValidCurrency(code) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
}

func TestNaturalAmount(t *testing.T) {
	cases := []struct {
		class  AccountClass
		debit  float64
		credit float64
		want   float64
	}{
		{ClassAsset, 1000, 200, 800},
		{ClassExpense, 500, 0, 500},
		{ClassLiability, 100, 400, 300},
		{ClassEquity, 0, 300, 300},
		{ClassRevenue, 50, 550, 500},
	}
	for _, tc := range cases {
		if got := naturalAmount(tc.class, tc.debit, tc.credit); got != tc.want {
			t.Fatalf("naturalAmount(%s, %v, %v) = %v, want %v", tc.class, tc.debit, tc.credit, got, tc.want)
		}
	}
}

func TestPeriodWorkflowIsForwardOnly(t *testing.T) {
	order := []PeriodStatus{PeriodDraft, PeriodInProgress, PeriodReview, PeriodApproved, PeriodPublished}
	for i := 0; i < len(order)-1; i++ {
		if next := nextPeriodStatus[order[i]]; next != order[i+1] {
			t.Fatalf("successor of %s = %s, want %s", order[i], next, order[i+1])
		}
	}
	if _, ok := nextPeriodStatus[PeriodPublished]; ok {
		t.Fatal("PUBLISHED must be terminal")
	}
}

func TestCounterpartTypes(t *testing.T) {
	if counterpartType[TypeIntercompanyReceivable] != TypeIntercompanyPayable {
		t.Fatal("receivable must pair with payable")
	}
	if counterpartType[TypeIntercompanyRevenue] != TypeIntercompanyExpense {
		t.Fatal("revenue must pair with expense")
	}
	if _, ok := counterpartType[TypeInvestmentElimination]; ok {
		t.Fatal("investment eliminations have no automatic counterpart")
	}
}

func TestPeriodLocked(t *testing.T) {
	var p ConsolidationPeriod
	if p.Locked() {
		t.Fatal("fresh period must not be locked")
	}
	now := testTime
	p.LockedAt = &now
	if !p.Locked() {
		t.Fatal("period with LockedAt set must report locked")
	}
}
