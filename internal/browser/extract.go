package browser

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/jobscan/internal/model"
)

// jobIDPatterns match the ways a job ID appears in served markup. The site
// ships several page generations at once, so extraction is a union over
// every known format rather than one selector.
var jobIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-job-id="(\d+)"`),
	regexp.MustCompile(`data-entity-urn="urn:li:jobPosting:(\d+)"`),
	regexp.MustCompile(`href="/jobs/view/(\d+)`),
	regexp.MustCompile(`jobPosting:(\d+)`),
}

// jobURLPatterns match a job ID inside a listing URL.
var jobURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/jobs/view/(\d+)`),
	regexp.MustCompile(`currentJobId=(\d+)`),
	regexp.MustCompile(`/jobs/(\d+)`),
}

// extractJobIDs returns every distinct job ID found in the HTML, sorted
// for deterministic output.
func extractJobIDs(html string) []string {
	seen := make(map[string]bool)
	for _, pattern := range jobIDPatterns {
		for _, m := range pattern.FindAllStringSubmatch(html, -1) {
			seen[m[1]] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// extractJobIDFromURL returns the job ID embedded in a listing URL, or ""
// if the URL carries none.
func extractJobIDFromURL(rawURL string) string {
	for _, pattern := range jobURLPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// recommendationSections are the page regions that link to related
// listings: "people also viewed", similar jobs, and the company's other
// openings.
var recommendationSections = []string{
	`section[class*="also-viewed"] a[href*="/jobs/view/"]`,
	`[class*="also-viewed"] a[href*="/jobs/view/"]`,
	`section[class*="more-jobs"] a[href*="/jobs/view/"]`,
	`[class*="company-jobs"] a[href*="/jobs/view/"]`,
	`.jobs-similar-jobs a[href*="/jobs/view/"]`,
	`aside a[href*="/jobs/view/"]`,
	`.scaffold-layout__aside a[href*="/jobs/view/"]`,
}

// extractRecommendedIDs returns related job IDs linked from a detail page,
// excluding the page's own ID.
func extractRecommendedIDs(doc *goquery.Document, originID string) []string {
	seen := make(map[string]bool)
	for _, selector := range recommendationSections {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			if id := extractJobIDFromURL(href); id != "" && id != originID {
				seen[id] = true
			}
		})
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// firstText returns the trimmed text of the first selector that matches
// anything non-empty.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// parseJob extracts a job record from a detail page. Fields the markup
// does not carry stay empty; only a page with no title at all is
// considered unparseable (the caller treats that as fatal).
func parseJob(id, html string, scrapedAt time.Time) (*model.Job, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		JobID:     id,
		ScrapedAt: scrapedAt,
	}

	job.Title = firstText(doc,
		".job-details-jobs-unified-top-card__job-title",
		".jobs-unified-top-card__job-title",
		".top-card-layout__title",
		"h1.job-title",
		"h1",
	)
	job.Company = firstText(doc,
		".job-details-jobs-unified-top-card__company-name",
		".jobs-unified-top-card__company-name",
		".topcard__org-name-link",
		`a[data-tracking-control-name*="company"]`,
		".top-card-layout__second-subline a",
	)
	job.Location = firstText(doc,
		".job-details-jobs-unified-top-card__bullet",
		".jobs-unified-top-card__bullet",
		".topcard__flavor--bullet",
		".top-card-layout__second-subline span",
	)
	job.WorkplaceType = firstText(doc,
		".job-details-jobs-unified-top-card__workplace-type",
		".jobs-unified-top-card__workplace-type",
		`span[class*="workplace-type"]`,
	)

	parseJobCriteria(doc, job)

	job.Description = firstText(doc,
		".jobs-description__content",
		".jobs-description-content__text",
		".description__text",
		".show-more-less-html__markup",
		`[class*="job-description"]`,
	)

	job.PostedDate = firstText(doc,
		".jobs-unified-top-card__posted-date",
		".posted-time-ago__text",
		`span[class*="posted"]`,
	)
	job.ApplicantCount = firstText(doc,
		".jobs-unified-top-card__applicant-count",
		`span[class*="applicant"]`,
	)
	if salary := firstText(doc,
		".job-details-jobs-unified-top-card__job-insight--highlight",
		`span[class*="salary"]`,
	); strings.ContainsAny(salary, "$€£") {
		job.SalaryRange = salary
	}

	job.Skills = parseSkills(doc)

	return job, nil
}

// criteriaSelectors locate the job criteria items (employment type,
// seniority level, industry, job function) across page generations.
var criteriaSelectors = []string{
	".job-details-jobs-unified-top-card__job-insight",
	".jobs-unified-top-card__job-insight",
	".description__job-criteria-list li",
	".job-criteria-list li",
}

// parseJobCriteria classifies criteria items by their content, since the
// markup does not label them.
func parseJobCriteria(doc *goquery.Document, job *model.Job) {
	for _, selector := range criteriaSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			lower := strings.ToLower(text)

			switch {
			case strings.Contains(lower, "full-time"),
				strings.Contains(lower, "part-time"),
				strings.Contains(lower, "contract"):
				if job.EmploymentType == "" {
					job.EmploymentType = text
				}
			case strings.Contains(lower, "entry"),
				strings.Contains(lower, "senior"),
				strings.Contains(lower, "director"):
				if job.SeniorityLevel == "" {
					job.SeniorityLevel = text
				}
			case strings.Contains(lower, "industry"):
				if job.Industry == "" {
					job.Industry = strings.TrimSpace(strings.TrimPrefix(text, "Industry:"))
				}
			case strings.Contains(lower, "function"):
				if job.JobFunction == "" {
					job.JobFunction = strings.TrimSpace(strings.TrimPrefix(text, "Job function:"))
				}
			}
		})
	}
}

// skillSelectors locate listed skills on the detail page.
var skillSelectors = []string{
	".job-details-skill-match-status-list__skill",
	`.job-details-how-you-match__skills-item span[aria-hidden="true"]`,
	".skill-match-modal__skill",
}

// parseSkills returns the distinct skills on the page, sorted.
func parseSkills(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	for _, selector := range skillSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				seen[text] = true
			}
		})
	}
	if len(seen) == 0 {
		return nil
	}

	skills := make([]string, 0, len(seen))
	for skill := range seen {
		skills = append(skills, skill)
	}
	sort.Strings(skills)
	return skills
}
