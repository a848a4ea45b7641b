package onboarding

import "strings"

// personalEmailDomains are consumer mail providers. A signup from one of
// these tells us nothing about the user's company, so the flow starts by
// asking for a website instead of assuming the email domain is the org's.
var personalEmailDomains = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"icloud.com":     {},
	"aol.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"mail.com":       {},
	"ymail.com":      {},
	"live.com":       {},
	"msn.com":        {},
	"me.com":         {},
	"mac.com":        {},
}

type EmailClass struct {
	Personal bool
	Domain   string
}

// ClassifyEmail decides whether a signup email comes from a personal mail
// provider or a corporate domain. Pure lookup, no network.
func ClassifyEmail(email string) EmailClass {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return EmailClass{}
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	_, personal := personalEmailDomains[domain]
	return EmailClass{Personal: personal, Domain: domain}
}
