package directory

import (
	"fmt"
	"slices"
	"strings"
)

// assistantPreamble frames the assistant's role before the directory listing.
const assistantPreamble = `You are Opora, a calm and helpful assistant for people in Ukraine
looking for social services. Answer in the language the caller uses.
Recommend organizations only from the directory below. When no listed
organization fits, say so honestly and suggest the closest alternative.
Always mention the organization's address and phone number when
recommending it. Prefer organizations with status "active"; mention
restrictions for "limited" ones; never recommend "inactive" ones.`

// Instructions renders the system instructions for a conversational session,
// embedding a snapshot of the directory. The output is deterministic: the
// organizations are listed sorted by name.
func Instructions(orgs []Organization) string {
	sorted := make([]Organization, len(orgs))
	copy(sorted, orgs)
	slices.SortFunc(sorted, func(a, b Organization) int {
		return strings.Compare(a.Name, b.Name)
	})

	var b strings.Builder
	b.WriteString(assistantPreamble)
	b.WriteString("\n\nDirectory:\n")
	for _, o := range sorted {
		writeOrganization(&b, o)
	}
	if len(sorted) == 0 {
		b.WriteString("(the directory is currently empty)\n")
	}
	return b.String()
}

func writeOrganization(b *strings.Builder, o Organization) {
	fmt.Fprintf(b, "\n- %s (%s, %s)\n", o.Name, o.Category, o.Region)
	if o.Services != "" {
		fmt.Fprintf(b, "  Services: %s\n", o.Services)
	}
	if o.Address != "" {
		fmt.Fprintf(b, "  Address: %s\n", o.Address)
	}
	if o.Phone != "" {
		fmt.Fprintf(b, "  Phone: %s\n", o.Phone)
	}
	funding := "charity or volunteer funded"
	if o.Budget {
		funding = "state-budget funded"
	}
	fmt.Fprintf(b, "  Status: %s, %s\n", o.Status, funding)
}
