package fetch

import (
	"net/url"
	"strings"
)

// Board describes how to find the posting on a job board's pages.
type Board struct {
	Name    string
	hosts   []string
	Content []string
	Noise   []string
}

// commonNoise strips application forms, EEO boilerplate and share widgets.
var commonNoise = []string{
	"form",
	".application-form",
	"#application-form",
	".apply-button-container",
	".eeo-statement",
	".voluntary-disclosure",
	".social-share",
	".cookie-consent",
}

var boards = []Board{
	{
		Name:    "greenhouse",
		hosts:   []string{"greenhouse.io"},
		Content: []string{".job__description.body", ".job__description", "#content", ".job-post-container"},
		Noise:   append([]string{".application--wrapper", ".voluntary-self-id", "#usa_self_id_section"}, commonNoise...),
	},
	{
		Name:    "lever",
		hosts:   []string{"lever.co"},
		Content: []string{".posting-page", ".posting-description", ".content"},
		Noise:   append([]string{".posting-apply", ".apply-section"}, commonNoise...),
	},
	{
		Name:    "workday",
		hosts:   []string{"workday.com", "myworkdayjobs.com"},
		Content: []string{"[data-automation-id='jobDescription']", ".job-description"},
		Noise:   append([]string{"[data-automation-id='applyButton']"}, commonNoise...),
	},
	{
		Name:    "ashby",
		hosts:   []string{"ashbyhq.com"},
		Content: []string{"[class*='_descriptionText']", "main"},
		Noise:   commonNoise,
	},
}

// genericBoard is used for hosts that match no known board.
var genericBoard = Board{
	Name: "generic",
	Content: []string{
		".job-description",
		"#job-description",
		".job-details",
		"[data-testid='job-description']",
		"main",
		"article",
		".content",
		"#content",
	},
	Noise: commonNoise,
}

// DetectBoard identifies the job board serving urlStr.
func DetectBoard(urlStr string) Board {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return genericBoard
	}
	host := strings.ToLower(parsed.Hostname())
	for _, b := range boards {
		for _, h := range b.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return b
			}
		}
	}
	return genericBoard
}
