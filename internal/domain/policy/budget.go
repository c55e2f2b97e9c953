package policy

import "maps"

// HoursPerMonth converts an hourly rate into the monthly figure shown to operators.
const HoursPerMonth = 730

type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictDeny    Verdict = "deny"
	VerdictUnknown Verdict = "unknown"
)

type BudgetDecision struct {
	Verdict      Verdict `json:"verdict"`
	InstanceType string  `json:"instance_type"`
	HourlyCost   float64 `json:"hourly_cost"`
	MonthlyCost  float64 `json:"monthly_cost"`
	Ceiling      float64 `json:"limit"`
}

func (d BudgetDecision) Allowed() bool {
	return d.Verdict != VerdictDeny
}

// PriceTable maps an instance type to its approximate hourly price in USD.
type PriceTable map[string]float64

var defaultPrices = PriceTable{
	"t3.nano": 0.0052, "t3.micro": 0.0104, "t3.small": 0.0208,
	"t3.medium": 0.0416, "t3.large": 0.0832, "t3.xlarge": 0.1664,
	"t3.2xlarge": 0.3328, "t2.micro": 0.0116, "t2.small": 0.023,
	"t2.medium": 0.0464, "t2.large": 0.0928, "m5.large": 0.096,
	"m5.xlarge": 0.192, "m5.2xlarge": 0.384, "m5.4xlarge": 0.768,
	"m5.24xlarge": 4.608,
	"c5.large": 0.085, "c5.xlarge": 0.17, "c5.2xlarge": 0.34,
	"r5.large": 0.126, "r5.xlarge": 0.252, "r5.2xlarge": 0.504,
}

func DefaultPrices() PriceTable {
	return maps.Clone(defaultPrices)
}

// Merge returns a copy of t with overrides applied.
func (t PriceTable) Merge(overrides map[string]float64) PriceTable {
	out := maps.Clone(t)
	if out == nil {
		out = PriceTable{}
	}
	maps.Copy(out, overrides)
	return out
}

func (t PriceTable) Hourly(instanceType string) (float64, bool) {
	p, ok := t[instanceType]
	return p, ok
}

// CheckBudget denies only a known hourly price strictly above the ceiling.
// Types missing from the table yield VerdictUnknown with zero cost.
func CheckBudget(instanceType string, hourlyCeiling float64, prices PriceTable) BudgetDecision {
	d := BudgetDecision{InstanceType: instanceType, Ceiling: hourlyCeiling}
	hourly, ok := prices.Hourly(instanceType)
	if !ok {
		d.Verdict = VerdictUnknown
		return d
	}
	d.HourlyCost = hourly
	d.MonthlyCost = hourly * HoursPerMonth
	if hourly > hourlyCeiling {
		d.Verdict = VerdictDeny
	} else {
		d.Verdict = VerdictAllow
	}
	return d
}

// MonthlyDelta is the monthly cost change of moving from one type to another.
// Unknown prices count as zero.
func MonthlyDelta(fromType, toType string, prices PriceTable) float64 {
	from, _ := prices.Hourly(fromType)
	to, _ := prices.Hourly(toType)
	return (to - from) * HoursPerMonth
}
