package experiments

// Fixed option sets offered by the experiment forms. Submissions must use
// these values verbatim.

var AgeRangeOptions = []string{"18-24", "25-34", "35-44", "45-54", "55-64", "65+"}

var GenderIdentityOptions = []string{
	"Woman",
	"Man",
	"Non-binary",
	"Prefer to self-describe",
	"Prefer not to say",
}

var EducationLevelOptions = []string{
	"High school or equivalent",
	"Some college",
	"Bachelor's degree",
	"Master's degree",
	"Doctorate",
	"Other",
}

var EmploymentStatusOptions = []string{
	"Employed full-time",
	"Employed part-time",
	"Self-employed",
	"Student",
	"Unemployed",
	"Retired",
	"Other",
}

var IncomeRangeOptions = []string{
	"Under $25,000",
	"$25,000-$49,999",
	"$50,000-$74,999",
	"$75,000-$99,999",
	"$100,000-$149,999",
	"$150,000+",
	"Prefer not to say",
}

var DonationTimingOptions = []string{"sooner", "later"}

func isOption(value string, options []string) bool {
	for _, opt := range options {
		if value == opt {
			return true
		}
	}
	return false
}
