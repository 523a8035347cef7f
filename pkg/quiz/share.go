package quiz

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/backsoul/spotit/pkg/models"
)

var shareTemplates = map[string]struct{ boast, invite, subject string }{
	"de": {
		boast:   "Ich habe %d%% im ERKENNEN. STOPPEN. Test erreicht!",
		invite:  "Mach ihn selbst: %s",
		subject: "Meine Ergebnisse im ERKENNEN. STOPPEN. Test",
	},
	"en": {
		boast:   "I scored %d%% in the SPOT IT. STOP IT. test!",
		invite:  "Take it yourself: %s",
		subject: "My SPOT IT. STOP IT. test results",
	},
}

// ShareLinks prepares the share targets of the result page. origin is the
// public URL of the site and pageURL the page being shared.
func ShareLinks(r models.Result, lang, origin, pageURL string) models.ShareLinks {
	tpl, ok := shareTemplates[lang]
	if !ok {
		tpl = shareTemplates[DefaultLanguage]
	}
	origin = strings.TrimSuffix(origin, "/")
	if pageURL == "" {
		pageURL = origin
	}

	boast := fmt.Sprintf(tpl.boast, Percentage(r.TotalScore, r.MaxScore))
	full := boast + " " + fmt.Sprintf(tpl.invite, origin)

	return models.ShareLinks{
		Text:     full,
		WhatsApp: "https://wa.me/?text=" + url.QueryEscape(full),
		Facebook: "https://www.facebook.com/sharer/sharer.php?u=" + url.QueryEscape(pageURL),
		Twitter:  "https://twitter.com/intent/tweet?text=" + url.QueryEscape(boast) + "&url=" + url.QueryEscape(pageURL),
		Email:    "mailto:?subject=" + mailtoEscape(tpl.subject) + "&body=" + mailtoEscape(full),
	}
}

// mailtoEscape escapes a mailto header field. Mail clients do not read "+"
// as a space (RFC 6068).
func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
