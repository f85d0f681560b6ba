package sampledata

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Sheet is one generated worksheet. Row values are strings or ints.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

var vendorColumns = []string{
	"Legal Name",
	"Trade Name",
	"Business Registration Number",
	"Country of Incorporation",
	"Headquarters Address",
	"Website",
	"Number of Employees",
	"Years in Operation",
	"Primary Industry",
	"Revenue Range",
	"Formal InfoSec Policy",
	"Certified Standards",
	"Security Risk Assessment (12 months)",
	"Data Encryption",
	"Penetration Testing",
	"DLP Strategy",
	"Security Breach Last 2 Years",
	"Regulatory Compliance",
	"External Audit Conducted",
	"Data Processing Agreement",
	"Internal Audit Frequency",
	"Business Continuity Plan",
	"DRP Testing Frequency",
	"RTO",
	"RPO",
	"Major Outage Last 2 Years",
	"Uses Subcontractors",
	"Subcontractor Monitoring",
	"Subcontractor Access to Sensitive Data",
	"Incident Response Plan",
	"Incident Simulation Conducted",
	"Significant Breach Last 12 Months",
	"Financial Statements Provided",
	"Cyber Insurance",
	"Customer Compensation Policy",
	"24/7 Infrastructure Monitoring",
	"Access Control Mechanisms",
	"Background Checks Conducted",
	"Cybersecurity Training Frequency",
	"Remote Work Security Guidelines",
	"Standard SLA Available",
	"Contract Termination & Data Destruction Policy",
	"Legal Dispute Resolution Mechanism",
}

var riskColumns = []string{"Risk ID", "Description", "Department", "Status", "Risk Level"}

var (
	namePrefixes = []string{"Acme", "Blue", "Cedar", "Delta", "Ember", "Falcon", "Granite", "Harbor", "Iron", "Juniper", "Keystone", "Lumen", "Meridian", "Northwind", "Orbit", "Pioneer", "Quartz", "Redwood", "Summit", "Vertex"}
	nameCores    = []string{"Data", "Systems", "Logistics", "Analytics", "Networks", "Health", "Capital", "Labs", "Works", "Solutions"}
	nameSuffixes = []string{"Inc", "LLC", "Ltd", "Group", "PLC", "GmbH", "and Sons"}
	countries    = []string{"United States", "Germany", "United Kingdom", "India", "Japan", "Brazil", "Canada", "France", "Singapore", "Australia"}
	cities       = []string{"Springfield", "Riverton", "Lakeside", "Fairview", "Georgetown", "Oakdale", "Milford", "Ashland"}
	streets      = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln", "Elm St", "Park Blvd"}
	frameworks   = []string{"GDPR", "HIPAA", "PCI-DSS", "CCPA", "ISO 27001", "SOC 2", "NIST"}
	industries   = []string{"IT Services", "FinTech", "Healthcare", "Manufacturing", "Retail"}
	revenues     = []string{"< $1M", "$1M - $10M", "$10M - $50M", "$50M - $100M", "> $100M"}
	frequencies  = []string{"Quarterly", "Annually", "Bi-annually"}
	departments  = []string{"Finance", "IT", "HR", "Operations"}
	statuses     = []string{"Open", "Closed", "In Progress"}
	levels       = []string{"Low", "Medium", "High"}
)

type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate builds a sheet of the given kind with n data rows.
func (g *Generator) Generate(kind string, n int) (Sheet, error) {
	switch kind {
	case KindVendors:
		return g.Vendors(n), nil
	case KindRisks:
		return g.Risks(n), nil
	default:
		return Sheet{}, fmt.Errorf("unknown sample kind %q", kind)
	}
}

// Vendors generates third-party risk assessment answers, one vendor per row.
func (g *Generator) Vendors(n int) Sheet {
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, g.vendor())
	}
	return Sheet{Name: "Assessments", Columns: append([]string(nil), vendorColumns...), Rows: rows}
}

func (g *Generator) vendor() []any {
	name := g.companyName()
	return []any{
		name,
		pickOne(g.rnd, nameSuffixes),
		g.registrationNumber(),
		pickOne(g.rnd, countries),
		fmt.Sprintf("%d %s, %s", 1+g.rnd.Intn(9999), pickOne(g.rnd, streets), pickOne(g.rnd, cities)),
		"https://www." + slug(name) + ".com",
		20 + g.rnd.Intn(4981),
		1 + g.rnd.Intn(30),
		pickOne(g.rnd, industries),
		pickOne(g.rnd, revenues),
		g.yesNo(),
		g.compliance(),
		g.yesNo(),
		pickOne(g.rnd, []string{"AES-256 at rest, TLS 1.2 in transit", "TLS only", "Encryption at rest only"}),
		pickOne(g.rnd, []string{"Annually", "Bi-annually", "Quarterly", "Not conducted"}),
		g.yesNo(),
		pickOne(g.rnd, []string{"None", "Minor incident resolved", "Major breach reported"}),
		g.compliance(),
		g.yesNo(),
		g.yesNo(),
		pickOne(g.rnd, frequencies),
		g.yesNo(),
		pickOne(g.rnd, frequencies),
		fmt.Sprintf("%d hours", pickOne(g.rnd, []int{2, 4, 8, 12, 24, 48})),
		fmt.Sprintf("%d minutes", pickOne(g.rnd, []int{15, 30, 60, 120, 240})),
		pickOne(g.rnd, []string{"None", "1 outage", "Multiple outages"}),
		g.yesNo(),
		pickOne(g.rnd, []string{"Annual audits", "Continuous monitoring", "Self-assessment only"}),
		g.yesNo(),
		g.yesNo(),
		g.yesNo(),
		pickOne(g.rnd, []string{"None", "Yes - resolved", "Yes - ongoing investigation"}),
		g.yesNo(),
		g.yesNo(),
		pickOne(g.rnd, []string{"Defined in SLA", "Case-by-case basis", "Not defined"}),
		g.yesNo(),
		pickOne(g.rnd, []string{"Biometric + Badge", "Badge only", "Manual log entry"}),
		g.yesNo(),
		pickOne(g.rnd, []string{"Quarterly", "Annually", "Upon hiring only"}),
		g.yesNo(),
		g.yesNo(),
		g.yesNo(),
		pickOne(g.rnd, []string{"Arbitration", "Court litigation", "Mediation"}),
	}
}

// Risks generates a small risk register with sequential RSK-nnn ids.
func (g *Generator) Risks(n int) Sheet {
	rows := make([][]any, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, []any{
			fmt.Sprintf("RSK-%03d", i),
			fmt.Sprintf("Potential risk issue related to process %d.", i),
			pickOne(g.rnd, departments),
			pickOne(g.rnd, statuses),
			pickOne(g.rnd, levels),
		})
	}
	return Sheet{Name: "Risks", Columns: append([]string(nil), riskColumns...), Rows: rows}
}

func (g *Generator) companyName() string {
	return pickOne(g.rnd, namePrefixes) + " " + pickOne(g.rnd, nameCores) + " " + pickOne(g.rnd, nameSuffixes)
}

// registrationNumber draws from the seeded source so output stays
// reproducible.
func (g *Generator) registrationNumber() string {
	id, err := uuid.NewRandomFromReader(g.rnd)
	if err != nil {
		return fmt.Sprintf("%012x", g.rnd.Int63())[:12]
	}
	return id.String()[:12]
}

func (g *Generator) yesNo() string {
	return pickOne(g.rnd, []string{"Yes", "No"})
}

func (g *Generator) compliance() string {
	n := 1 + g.rnd.Intn(4)
	perm := g.rnd.Perm(len(frameworks))[:n]
	picked := make([]string, 0, n)
	for _, idx := range perm {
		picked = append(picked, frameworks[idx])
	}
	return strings.Join(picked, ", ")
}

func slug(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, "-")
}

func pickOne[T any](rnd *rand.Rand, values []T) T {
	return values[rnd.Intn(len(values))]
}
