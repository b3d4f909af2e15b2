package grade

import "testing"

func val(v float64) *float64 { return &v }

func comp(typ string, v *float64) Component {
	return Component{Type: typ, Value: v}
}

func TestComputeSubjectAverage(t *testing.T) {
	tests := []struct {
		name   string
		comps  []Component
		want   float64
		wantOk bool
	}{
		{name: "no components"},
		{name: "only placeholders", comps: []Component{comp(TypeRegular, nil), comp(TypeFinal, nil)}},
		{
			name:  "weighted",
			comps: []Component{comp(TypeRegular, val(8)), comp(TypeRegular, val(7)), comp(TypeMidterm, val(9)), comp(TypeFinal, val(6))},
			want:  7.3, wantOk: true,
		},
		{name: "half rounds up", comps: []Component{comp(TypeRegular, val(7)), comp(TypeRegular, val(7.5))}, want: 7.3, wantOk: true},
		{name: "midterm & final only", comps: []Component{comp(TypeMidterm, val(8)), comp(TypeFinal, val(6))}, want: 6.8, wantOk: true},
		{name: "final only", comps: []Component{comp(TypeFinal, val(9.5))}, want: 9.5, wantOk: true},
		{
			name:  "placeholders skipped",
			comps: []Component{comp(TypeRegular, val(6)), comp(TypeRegular, nil), comp(TypeMidterm, nil)},
			want:  6, wantOk: true,
		},
		{
			name:  "summary wins",
			comps: []Component{comp(TypeRegular, val(2)), comp(TypeSummary, val(8.5)), comp(TypeFinal, val(3))},
			want:  8.5, wantOk: true,
		},
		{
			name:  "summary placeholder ignored",
			comps: []Component{comp(TypeSummary, nil), comp(TypeRegular, val(5))},
			want:  5, wantOk: true,
		},
		{
			name:  "last final counts",
			comps: []Component{comp(TypeFinal, val(2)), comp(TypeFinal, val(8))},
			want:  8, wantOk: true,
		},
		{name: "zeros", comps: []Component{comp(TypeRegular, val(0)), comp(TypeFinal, val(0))}, want: 0, wantOk: true},
		{name: "tens", comps: []Component{comp(TypeRegular, val(10)), comp(TypeMidterm, val(10))}, want: 10, wantOk: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeSubjectAverage(tt.comps)
			if ok != tt.wantOk {
				t.Fatalf("ComputeSubjectAverage() ok = %v; want %v", ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("ComputeSubjectAverage() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestComputeMidtermFinalAverage(t *testing.T) {
	tests := []struct {
		name   string
		comps  []Component
		want   float64
		wantOk bool
	}{
		{name: "no components"},
		{name: "midterm missing", comps: []Component{comp(TypeFinal, val(8))}},
		{name: "final placeholder", comps: []Component{comp(TypeMidterm, val(8)), comp(TypeFinal, nil)}},
		{name: "mean", comps: []Component{comp(TypeMidterm, val(8)), comp(TypeFinal, val(6))}, want: 7, wantOk: true},
		{name: "half rounds up", comps: []Component{comp(TypeMidterm, val(7.5)), comp(TypeFinal, val(7.6))}, want: 7.6, wantOk: true},
		{
			name:  "regulars ignored",
			comps: []Component{comp(TypeRegular, val(1)), comp(TypeMidterm, val(9)), comp(TypeFinal, val(9)), comp(TypeSummary, val(2))},
			want:  9, wantOk: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeMidtermFinalAverage(tt.comps)
			if ok != tt.wantOk {
				t.Fatalf("ComputeMidtermFinalAverage() ok = %v; want %v", ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("ComputeMidtermFinalAverage() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{v: 7.25, places: 1, want: 7.3},
		{v: 7.24, places: 1, want: 7.2},
		{v: 7.35, places: 1, want: 7.4},
		{v: 6.05, places: 1, want: 6.1},
		{v: 2.5, places: 0, want: 3},
		{v: -2.5, places: 0, want: -3},
		{v: 10, places: 1, want: 10},
	}
	for _, tt := range tests {
		if got := RoundHalfUp(tt.v, tt.places); got != tt.want {
			t.Errorf("RoundHalfUp(%v, %d) = %v; want %v", tt.v, tt.places, got, tt.want)
		}
	}
}

func TestIsValidValue(t *testing.T) {
	tests := []struct {
		v    float64
		want bool
	}{
		{0, true}, {10, true}, {7.5, true}, {9.9, true},
		{-0.1, false}, {10.1, false}, {7.25, false}, {7.35, false}, {0.05, false},
		{0.1, true}, {6.6, true},
	}
	for _, tt := range tests {
		if got := IsValidValue(tt.v); got != tt.want {
			t.Errorf("IsValidValue(%v) = %v; want %v", tt.v, got, tt.want)
		}
	}
}
