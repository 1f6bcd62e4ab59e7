package testutil

// HealthPolicyText reads like the opening of a retail health policy wording.
const HealthPolicyText = `POLICY SCHEDULE. This policy document sets out the terms and conditions of your health insurance. ` +
	`The insurer will indemnify the insured person for medical expenses incurred during hospitalization, ` +
	`subject to the sum insured and the deductible shown in the schedule. Cashless treatment is available at any network hospital. ` +
	`Room rent is payable up to one percent of the sum insured per day. A waiting period of 30 days applies to all claims ` +
	`except accidents, and pre-existing disease is covered after 36 months of continuous coverage. ` +
	`The premium must be paid before renewal; a grace period of 30 days applies.`

// ResumeText is a document that should never pass the policy gate.
const ResumeText = `Jane Doe, Senior Backend Engineer. Experience: eight years building distributed systems in Go and Python. ` +
	`Led a team of five engineers to migrate a monolith to services on Kubernetes. Skills: PostgreSQL, Kafka, gRPC, Terraform. ` +
	`Education: BSc Computer Science. Interests: climbing, chess and open source contributions.`

// HealthPolicyPDF is a two-page PDF of HealthPolicyText.
func HealthPolicyPDF() []byte {
	runs := Paragraph(HealthPolicyText, 80)
	half := len(runs) / 2
	return BuildPDF(runs[:half], runs[half:])
}

func ResumePDF() []byte {
	return BuildPDF(Paragraph(ResumeText, 80))
}

// ScannedPDF has a text layer too thin to be a real document, such as a
// page footer on an image scan.
func ScannedPDF() []byte {
	return BuildPDF([]string{"Page 1 of 3"}, []string{"Page 2 of 3"}, []string{"Page 3 of 3"})
}
