package stages

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/retention-intel/server/internal/agent/model"
)

// DefaultTopN is used when the request names no usable "top N".
const DefaultTopN = 10

var topNPattern = regexp.MustCompile(`(?i)top\s+(\d+)`)

// ParseTopN extracts N from "top N". Absent, unparsable or non-positive
// values yield DefaultTopN.
func ParseTopN(text string) int {
	m := topNPattern.FindStringSubmatch(text)
	if m == nil {
		return DefaultTopN
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return DefaultTopN
	}
	return n
}

// RankAtRisk returns the n highest churn-risk customers, stable on ties.
func RankAtRisk(customers []model.Customer, n int) []model.Customer {
	ordered := make([]model.Customer, len(customers))
	copy(ordered, customers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChurnRiskScore > ordered[j].ChurnRiskScore
	})
	if n < len(ordered) {
		ordered = ordered[:n]
	}
	return ordered
}

// LookupAttrition resolves a known customer id to a single record, and
// otherwise ranks the table by churn risk.
func LookupAttrition(customers []model.Customer, userInput, customerID string) model.AttritionResult {
	if customerID != "" {
		for _, c := range customers {
			if c.ID == customerID {
				return model.SingleAttrition(c)
			}
		}
	}

	top := RankAtRisk(customers, ParseTopN(userInput))
	rows := make([]model.RankedCustomer, len(top))
	for i, c := range top {
		rows[i] = c.Rank()
	}
	var focus *model.Customer
	if len(top) > 0 {
		focus = &top[0]
	}
	return model.RankedAttrition(rows, focus)
}
