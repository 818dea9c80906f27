package extractor

import (
	"regexp"
	"strings"
)

// UnknownName is the placeholder used when no candidate name can be found.
const UnknownName = "Unknown"

// Contact is the heuristically extracted candidate contact information.
type Contact struct {
	Name  string
	Email string
	Phone string
}

var (
	emailPattern       = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9._%+-]*@[A-Za-z0-9][A-Za-z0-9.-]*\.[A-Za-z]{2,}`)
	emailStrictPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	namePattern        = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	nonPhoneChars      = regexp.MustCompile(`[^\d+]`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`),
		regexp.MustCompile(`\+?[0-9]{1,4}[-.\s]?[0-9]{3,4}[-.\s]?[0-9]{3,4}[-.\s]?[0-9]{3,4}`),
		regexp.MustCompile(`\+?[0-9]{10,15}`),
	}

	// Lines containing these are headers, not names.
	nameSkipWords = []string{"resume", "cv", "curriculum", "vitae", "contact", "personal", "information", "profile", "objective"}
	// Words that disqualify a line from being a name even when it is shaped
	// like one.
	nameStopWords = map[string]bool{
		"phone": true, "email": true, "address": true,
		"linkedin": true, "github": true, "portfolio": true,
	}
)

// ExtractContact runs all three field heuristics over the resume text.
func ExtractContact(text string) Contact {
	return ValidateContact(Contact{
		Name:  extractName(text),
		Email: extractEmail(text),
		Phone: extractPhone(text),
	})
}

// extractEmail returns the first plausible email address in the text.
func extractEmail(text string) string {
	if match := emailPattern.FindString(text); match != "" {
		return match
	}
	// Fallback: scan line by line for anything email-shaped.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "@") || !strings.Contains(line, ".") {
			continue
		}
		for _, word := range strings.Fields(line) {
			if strings.Count(word, "@") != 1 {
				continue
			}
			domain := strings.SplitN(word, "@", 2)[1]
			if len(strings.Split(domain, ".")) >= 2 {
				return strings.Trim(word, `.,;:()[]{}"'`)
			}
		}
	}
	return ""
}

// extractPhone returns the first phone-shaped token with a sane digit count.
func extractPhone(text string) string {
	for _, pattern := range phonePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			digits := nonPhoneChars.ReplaceAllString(match, "")
			n := len(strings.ReplaceAll(digits, "+", ""))
			if n >= 7 && n <= 15 {
				return match
			}
		}
	}
	// Fallback: labelled contact lines.
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if !strings.Contains(lower, "phone:") && !strings.Contains(lower, "mobile:") &&
			!strings.Contains(lower, "tel:") && !strings.Contains(lower, "contact:") {
			continue
		}
		parts := strings.SplitN(lower, ":", 2)
		if len(parts) != 2 {
			continue
		}
		digits := nonPhoneChars.ReplaceAllString(parts[1], "")
		digits = strings.ReplaceAll(digits, "+", "")
		if len(digits) >= 7 && len(digits) <= 15 {
			return digits
		}
	}
	return ""
}

// extractName looks for a name-shaped line near the top of the resume, then
// falls back to explicit "name:" labels.
func extractName(text string) string {
	lines := strings.Split(text, "\n")

	limit := len(lines)
	if limit > 10 {
		limit = 10
	}
scan:
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, skip := range nameSkipWords {
			if strings.Contains(lower, skip) {
				continue scan
			}
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		for _, word := range words {
			if !isCapitalizedAlpha(word) || nameStopWords[strings.ToLower(word)] {
				continue scan
			}
		}
		return strings.Join(words, " ")
	}

	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if !strings.Contains(lower, "name:") {
			continue
		}
		parts := strings.SplitN(lower, ":", 2)
		if len(parts) != 2 {
			continue
		}
		words := strings.Fields(parts[1])
		if len(words) >= 2 && len(words) <= 4 {
			for i, w := range words {
				words[i] = titleCase(w)
			}
			return strings.Join(words, " ")
		}
	}
	return UnknownName
}

func isCapitalizedAlpha(word string) bool {
	if word == "" {
		return false
	}
	for i, r := range word {
		isUpper := r >= 'A' && r <= 'Z'
		isLower := r >= 'a' && r <= 'z'
		if i == 0 && !isUpper {
			return false
		}
		if !isUpper && !isLower {
			return false
		}
	}
	return true
}

func titleCase(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

// ValidateContact cleans each field and replaces anything implausible with
// its placeholder value.
func ValidateContact(c Contact) Contact {
	out := c

	if c.Name != "" && c.Name != UnknownName {
		if namePattern.MatchString(c.Name) {
			words := strings.Fields(c.Name)
			for i, w := range words {
				words[i] = titleCase(w)
			}
			out.Name = strings.Join(words, " ")
		} else {
			out.Name = UnknownName
		}
	} else {
		out.Name = UnknownName
	}

	if c.Email != "" {
		email := strings.ToLower(strings.TrimSpace(c.Email))
		if emailStrictPattern.MatchString(email) {
			out.Email = email
		} else {
			out.Email = ""
		}
	}

	if c.Phone != "" {
		digits := nonPhoneChars.ReplaceAllString(c.Phone, "")
		n := len(strings.ReplaceAll(digits, "+", ""))
		if n >= 7 && n <= 15 {
			out.Phone = digits
		} else {
			out.Phone = ""
		}
	}

	return out
}
