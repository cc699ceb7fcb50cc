package evidence

import "strings"

// skipSuffixes are binary or build-artifact endings that can never be
// compliance evidence. Paths ending in one of these score zero.
var skipSuffixes = []string{
	".png", ".jpg", ".gif", ".ico", ".woff", ".ttf", ".eot", ".svg",
	".min.js", ".min.css", ".lock", ".sum", ".mod",
}

// highValueKeywords mark files that directly document policies, CI, or
// dependency hygiene. Worth the largest bonus; first match only.
var highValueKeywords = []string{
	"security", "privacy", "compliance", "gdpr", "soc2", "audit",
	"incident", "breach", "dpia", "ropa", "governance", "policy",
	".gitlab-ci", "ci.yml", "pipeline", "workflow",
	"dockerfile", "docker-compose",
	"changelog", "code_of_conduct", "contributing",
	"renovate", "dependabot",
}

// infraKeywords mark infrastructure and access-control configuration.
var infraKeywords = []string{
	"infrastructure", "terraform", "ansible", "helm", "k8s", "kubernetes",
	"iam", "rbac", "access", "auth", "tls", "ssl", "cert",
}

// Score rates a file path by compliance relevance. Higher means fetched
// earlier under the budget; zero means never fetched. Pure and deterministic:
// no I/O, same path always yields the same score.
//
// Bonuses are additive across categories but each keyword category fires at
// most once, so a path can't stack e.g. "security" and "privacy".
func Score(path string) float64 {
	lower := strings.ToLower(path)

	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return 0
		}
	}

	// Any surviving text file stays eligible, just at low priority.
	score := 0.1

	for _, kw := range highValueKeywords {
		if strings.Contains(lower, kw) {
			score += 2.0
			break
		}
	}

	for _, kw := range infraKeywords {
		if strings.Contains(lower, kw) {
			score += 1.5
			break
		}
	}

	if strings.HasPrefix(lower, "docs/") || strings.HasSuffix(lower, ".md") {
		score += 0.5
	}

	// Root files disproportionately carry policy and security disclosures.
	if !strings.Contains(path, "/") {
		score += 1.0
	}

	return score
}
