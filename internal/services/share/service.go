// Package share builds the crawler-facing share page for a completed upload
// session: a preview summary for Open Graph meta tags and an HTML shell that
// redirects humans to the dashboard.
package share

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/music-livereview/backend/internal/config"
	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// maxDisplayNameLen caps artist and track names rendered into meta tags.
const maxDisplayNameLen = 80

// PreviewData is the summary a share page is rendered from.
type PreviewData struct {
	// Headline is the lead stat line.
	Headline string `json:"headline"`

	// Subline supports the headline.
	Subline string `json:"subline"`

	// TopArtist is the most-listened artist, empty when unknown.
	TopArtist string `json:"topArtist,omitempty"`

	// TopTrack is the most-played track, empty when unknown.
	TopTrack string `json:"topTrack,omitempty"`

	// TopTrackPlays is the play count of the top track.
	TopTrackPlays int64 `json:"topTrackPlays,omitempty"`

	// TotalHours is total listening time in whole hours.
	TotalHours int64 `json:"totalHours"`

	// UniqueArtists is the number of distinct artists.
	UniqueArtists int64 `json:"uniqueArtists"`

	// DateRange is the listening period, like "Jan 2019 – Mar 2023".
	DateRange string `json:"dateRange"`

	// TimelineValues are normalized 0-1 bar heights for the listening
	// timeline.
	TimelineValues []float64 `json:"timelineValues"`
}

// StatsProvider is the slice of the personal stats service a share page
// needs.
type StatsProvider interface {
	Overview(ctx context.Context, token string) (*models.Overview, error)
	TopArtists(ctx context.Context, token string, filter models.StatsFilter) ([]models.TopArtistEntry, error)
	TopTracks(ctx context.Context, token string, filter models.StatsFilter) ([]models.TopTrackEntry, error)
	Marathons(ctx context.Context, token string, filter models.StatsFilter) ([]models.MarathonEntry, error)
	Timeline(ctx context.Context, token string, filter models.StatsFilter) ([]models.TimelinePoint, error)
}

// Service renders share previews and pages from the personal stats read
// models.
type Service struct {
	stats  StatsProvider
	cache  *PreviewCache
	cfg    *config.Config
	logger *utils.Logger
}

// NewService creates the share service.
func NewService(statsService StatsProvider, cfg *config.Config, logger *utils.Logger) *Service {
	return &Service{
		stats:  statsService,
		cache:  NewPreviewCache(cfg.Share.PreviewCacheTTL, cfg.Share.PreviewCacheSize),
		cfg:    cfg,
		logger: logger.Named("share_service"),
	}
}

// Preview returns the share preview for a token, computing and caching on
// miss.
func (s *Service) Preview(ctx context.Context, token string) (*PreviewData, error) {
	if data, ok := s.cache.Get(token); ok {
		return data, nil
	}

	data, err := s.buildPreview(ctx, token)
	if err != nil {
		return nil, err
	}

	s.cache.Set(token, data)
	return data, nil
}

// InvalidatePreview drops a token's cached preview. Called when the session
// behind it is deleted.
func (s *Service) InvalidatePreview(token string) {
	s.cache.Delete(token)
}

func (s *Service) buildPreview(ctx context.Context, token string) (*PreviewData, error) {
	overview, err := s.stats.Overview(ctx, token)
	if err != nil {
		return nil, err
	}
	topArtists, err := s.stats.TopArtists(ctx, token, models.StatsFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	topTracks, err := s.stats.TopTracks(ctx, token, models.StatsFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	marathons, err := s.stats.Marathons(ctx, token, models.StatsFilter{})
	if err != nil {
		return nil, err
	}
	timeline, err := s.stats.Timeline(ctx, token, models.StatsFilter{})
	if err != nil {
		return nil, err
	}

	totalHours := int64(math.Round(overview.TotalHours))
	totalDays := int64(math.Round(float64(totalHours) / 24))

	var marathonHours float64
	var longest *models.MarathonEntry
	if len(marathons) > 0 {
		longest = &marathons[0]
		marathonHours = math.Round(float64(longest.DurationMinutes)/60*10) / 10
	}

	dateRange := formatDateRange(overview.DateFrom, overview.DateTo)

	data := &PreviewData{
		TotalHours:    totalHours,
		UniqueArtists: overview.UniqueArtists,
		DateRange:     dateRange,
		TimelineValues: buildTimelineValues(lo.Map(timeline, func(p models.TimelinePoint, _ int) float64 {
			return p.TotalHours
		})),
	}
	// Names come straight from an untrusted export; clean them before they
	// reach OG meta tags.
	if len(topArtists) > 0 {
		data.TopArtist = utils.SanitizeDisplayName(topArtists[0].Name, maxDisplayNameLen)
	}
	if len(topTracks) > 0 {
		data.TopTrack = utils.SanitizeDisplayName(topTracks[0].Name, maxDisplayNameLen)
		data.TopTrackPlays = topTracks[0].PlayCount
	}

	hoursHeadline := fmt.Sprintf("Listened to %s of music", utils.FormatListeningTime(totalHours*3_600_000))

	switch {
	case totalHours >= 5000:
		data.Headline = hoursHeadline
		data.Subline = fmt.Sprintf("That's %d days straight", totalDays)
	case marathonHours >= 8:
		data.Headline = fmt.Sprintf("%v-hour listening marathon in one sitting", marathonHours)
		if longest.TopArtist != "" {
			data.Subline = fmt.Sprintf("Top artist: %s", utils.SanitizeDisplayName(longest.TopArtist, maxDisplayNameLen))
		} else {
			data.Subline = fmt.Sprintf("%d tracks played", longest.PlayCount)
		}
	case overview.UniqueArtists >= 3000:
		data.Headline = fmt.Sprintf("Explored %s different artists", utils.GroupThousands(overview.UniqueArtists))
		data.Subline = fmt.Sprintf("Across %s", dateRange)
	case totalHours >= 1000:
		data.Headline = hoursHeadline
		data.Subline = fmt.Sprintf("That's %d days straight", totalDays)
	default:
		data.Headline = hoursHeadline
		data.Subline = fmt.Sprintf("%s artists explored", utils.GroupThousands(overview.UniqueArtists))
	}

	return data, nil
}

// Page renders the crawler-facing HTML for a share token. Social crawlers
// read the meta tags; browsers get an immediate redirect to the SPA results
// route.
func (s *Service) Page(ctx context.Context, token string) (string, error) {
	data, err := s.Preview(ctx, token)
	if err != nil {
		return "", err
	}

	baseURL := strings.TrimRight(s.cfg.Share.BaseURL, "/")
	spaURL := fmt.Sprintf("%s/results/%s", baseURL, token)
	spaPath := "/results/" + token

	title := utils.EscapeHTML(data.Headline)
	parts := []string{data.Subline}
	if data.TopArtist != "" {
		parts = append(parts, fmt.Sprintf("#1 Artist: %s", data.TopArtist))
	}
	if data.TopTrack != "" && data.TopTrackPlays > 0 {
		parts = append(parts, fmt.Sprintf("Most-played song: %s (%sx)", data.TopTrack, utils.GroupThousands(data.TopTrackPlays)))
	}
	description := utils.EscapeHTML(strings.Join(parts, " · "))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("  <meta charset=\"UTF-8\">\n")
	b.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "  <title>%s | music livereview</title>\n\n", title)
	b.WriteString("  <meta property=\"og:type\" content=\"website\">\n")
	b.WriteString("  <meta property=\"og:site_name\" content=\"music livereview\">\n")
	fmt.Fprintf(&b, "  <meta property=\"og:title\" content=\"%s\">\n", title)
	fmt.Fprintf(&b, "  <meta property=\"og:description\" content=\"%s\">\n", description)
	fmt.Fprintf(&b, "  <meta property=\"og:url\" content=\"%s\">\n\n", spaURL)
	b.WriteString("  <meta name=\"twitter:card\" content=\"summary\">\n")
	fmt.Fprintf(&b, "  <meta name=\"twitter:title\" content=\"%s\">\n", title)
	fmt.Fprintf(&b, "  <meta name=\"twitter:description\" content=\"%s\">\n\n", description)
	fmt.Fprintf(&b, "  <meta http-equiv=\"refresh\" content=\"0;url=%s\">\n", spaPath)
	fmt.Fprintf(&b, "  <link rel=\"canonical\" href=\"%s\">\n", spaURL)
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "  <p>Redirecting to <a href=\"%s\">your dashboard</a>…</p>\n", spaPath)
	fmt.Fprintf(&b, "  <script>window.location.replace(%q);</script>\n", spaPath)
	b.WriteString("</body>\n</html>\n")

	return b.String(), nil
}

// formatDateRange renders a listening period like "Jan 2019 – Mar 2023".
func formatDateRange(from, to time.Time) string {
	const layout = "Jan 2006"
	return from.UTC().Format(layout) + " – " + to.UTC().Format(layout)
}

// buildTimelineValues converts monthly values into normalized 0-1 bar
// heights. Histories longer than 60 months are folded into quarters so the
// chart never gets too dense.
func buildTimelineValues(values []float64) []float64 {
	if len(values) > 60 {
		quarters := make([]float64, 0, (len(values)+2)/3)
		for i := 0; i < len(values); i += 3 {
			var sum float64
			for j := i; j < i+3 && j < len(values); j++ {
				sum += values[j]
			}
			quarters = append(quarters, sum)
		}
		values = quarters
	}

	maxVal := 1.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / maxVal
	}
	return out
}
