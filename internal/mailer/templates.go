package mailer

import (
	"fmt"
	"strings"

	"resume-screener-go/internal/analysis"
	"resume-screener-go/internal/types"
)

// Candidate is the per-recipient data used for personalization.
type Candidate struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

func (c Candidate) displayName() string {
	if c.Name == "" || c.Name == "Unknown" {
		return "Candidate"
	}
	return c.Name
}

func (c Candidate) strengthsPhrase() string {
	if len(c.Strengths) == 0 {
		return "their qualifications"
	}
	return strings.Join(c.Strengths, ", ")
}

const generationSystemPrompt = "You are a professional HR assistant. Write personalized, professional emails that are warm and human. Use the candidate's name and specific details from their application."

// generationPrompt builds the per-category user prompt for the model.
func generationPrompt(category types.Category, c Candidate, info analysis.CompanyInfo) string {
	var b strings.Builder

	switch category {
	case types.CategorySelected:
		fmt.Fprintf(&b, "Write a personalized email to %s informing them they've been selected for the next round of interviews for the %s position at %s.\n\n",
			c.displayName(), info.PositionTitle, info.CompanyName)
	case types.CategoryRejected:
		fmt.Fprintf(&b, "Write a respectful and encouraging rejection email to %s for the %s position at %s.\n\n",
			c.displayName(), info.PositionTitle, info.CompanyName)
	default:
		fmt.Fprintf(&b, "Write a professional email to %s informing them they are being considered for the %s position at %s.\n\n",
			c.displayName(), info.PositionTitle, info.CompanyName)
	}

	fmt.Fprintf(&b, "Use this information:\n")
	fmt.Fprintf(&b, "- Candidate: %s\n", c.displayName())
	fmt.Fprintf(&b, "- Position: %s\n", info.PositionTitle)
	fmt.Fprintf(&b, "- Company: %s\n", info.CompanyName)
	fmt.Fprintf(&b, "- Department: %s\n", info.Department)
	fmt.Fprintf(&b, "- Location: %s\n", info.Location)
	fmt.Fprintf(&b, "- Candidate's strengths: %s\n", c.strengthsPhrase())

	switch category {
	case types.CategorySelected:
		fmt.Fprintf(&b, "- Score: %.1f/10\n\nMake it personal and encouraging. Include next steps.", c.Score)
	case types.CategoryRejected:
		b.WriteString("\nBe polite, respectful, and encouraging for future opportunities.")
	default:
		b.WriteString("\nBe encouraging and professional.")
	}
	return b.String()
}

// FallbackEmail is the static template used when the model is unavailable.
// Every category has one, so email generation never fails outright.
func FallbackEmail(category types.Category, c Candidate, info analysis.CompanyInfo) string {
	name := c.displayName()
	company := info.CompanyName
	position := info.PositionTitle

	switch category {
	case types.CategorySelected:
		return fmt.Sprintf(`Subject: Congratulations - You've Been Selected for the Next Round

Dear %s,

I hope this message finds you well.

Thank you for your interest in the %s at %s. We are pleased to inform you that your application has been reviewed, and we are considering you for the next steps in our recruitment process.

Your qualifications and experience have impressed our team, and we believe you would be a valuable addition to our organization.

You may be contacted soon for further discussions or to schedule an interview. We appreciate your patience as we continue our evaluation process.

Thank you once again for your interest in joining our team. We look forward to the possibility of working together.

Best regards,
HR Team
%s`, name, position, company, company)

	case types.CategoryRejected:
		return fmt.Sprintf(`Subject: Application Status Update

Dear %s,

I hope this message finds you well.

Thank you for your interest in the %s at %s. After careful consideration, we have decided to move forward with other candidates whose qualifications more closely match our current needs.

We appreciate your interest in our company and encourage you to apply for future opportunities that may be a better fit.

Thank you once again for your interest in joining our team.

Best regards,
HR Team
%s`, name, position, company, company)

	default:
		return fmt.Sprintf(`Subject: Application Status - Under Consideration

Dear %s,

I hope this message finds you well.

Thank you for your interest in the %s at %s. We are currently reviewing all applications and your profile is under consideration.

You may be contacted soon for further discussions or to schedule an interview. We appreciate your patience as we continue our evaluation process.

Thank you once again for your interest in joining our team. We look forward to the possibility of working together.

Best regards,
HR Team
%s`, name, position, company, company)
	}
}

const defaultSubject = "Application Status Update"

// SplitSubject separates a generated email into subject and body. Generated
// content carries a "Subject:" first line; when it is missing the whole text
// becomes the body under a generic subject.
func SplitSubject(content string) (subject, body string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "Subject:") {
			subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
			body = strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
			return subject, body
		}
	}
	return defaultSubject, content
}
