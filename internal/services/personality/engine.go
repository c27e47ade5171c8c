// Package personality classifies a listening history into one of a fixed
// set of listener personalities. Everything here is a pure function over the
// scalar signals the stats service derives from stored buckets.
package personality

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/music-livereview/backend/internal/models"
	"github.com/music-livereview/backend/internal/utils"
)

// Dimension values.
const (
	TimeNightOwl  = "night_owl"
	TimeEarlyBird = "early_bird"
	TimeDaytime   = "daytime"
	TimeEvening   = "evening"

	LoyaltyLoyalist = "loyalist"
	LoyaltyBalanced = "balanced"
	LoyaltyExplorer = "explorer"

	SkipRestless  = "restless"
	SkipSelective = "selective"
	SkipCommitted = "committed"

	SessionBinger  = "binger"
	SessionRegular = "regular"
	SessionDipper  = "dipper"

	ShuffleGoesWithFlow = "goes_with_flow"
	ShuffleIntentional  = "intentional"
)

// Dimensions are the five scored axes of a listening history.
type Dimensions struct {
	TimeOfDay    string `json:"timeOfDay"`
	Loyalty      string `json:"loyalty"`
	SkipBehavior string `json:"skipBehavior"`
	SessionStyle string `json:"sessionStyle"`
	ShuffleStyle string `json:"shuffleStyle"`
}

// Result is a classified personality with its supporting dimensions.
type Result struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Emoji       string     `json:"emoji"`
	Description string     `json:"description"`
	Dimensions  Dimensions `json:"dimensions"`
	FunStat     string     `json:"funStat"`
}

// Definition is the display form of one personality.
type Definition struct {
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Description string `json:"description"`
}

// timeBuckets maps each time-of-day label to its hours.
var timeBuckets = map[string][]int{
	TimeNightOwl:  {22, 23, 0, 1, 2, 3},
	TimeEarlyBird: {5, 6, 7, 8},
	TimeDaytime:   {9, 10, 11, 12, 13, 14, 15, 16},
	TimeEvening:   {17, 18, 19, 20, 21},
}

// timeOrder fixes the tie-break when two buckets have equal totals.
var timeOrder = []string{TimeNightOwl, TimeEarlyBird, TimeDaytime, TimeEvening}

// matcher pairs a personality with the dimension values it requires. The
// bonus predicate adds extra score when it fires.
type matcher struct {
	id       string
	required map[string]string
	bonus    func(inputs *models.PersonalityInputs) bool
}

// Dimension keys used by matchers.
const (
	dimTime    = "timeOfDay"
	dimLoyalty = "loyalty"
	dimSkip    = "skipBehavior"
	dimSession = "sessionStyle"
	dimShuffle = "shuffleStyle"
)

// matchers are ordered; earlier entries win score ties.
var matchers = []matcher{
	{
		id:       "main_character",
		required: map[string]string{dimTime: TimeNightOwl, dimLoyalty: LoyaltyExplorer, dimSkip: SkipRestless},
	},
	{
		id:       "npc",
		required: map[string]string{dimTime: TimeDaytime, dimLoyalty: LoyaltyLoyalist, dimShuffle: ShuffleGoesWithFlow, dimSkip: SkipCommitted},
	},
	{
		id:       "served",
		required: map[string]string{dimLoyalty: LoyaltyExplorer, dimSession: SessionBinger, dimSkip: SkipCommitted},
	},
	{
		id:       "creature_of_habit",
		required: map[string]string{dimTime: TimeEarlyBird, dimLoyalty: LoyaltyLoyalist, dimSkip: SkipCommitted},
	},
	{
		id:       "chronically_online",
		required: map[string]string{dimTime: TimeNightOwl, dimLoyalty: LoyaltyLoyalist, dimSession: SessionBinger},
	},
	{
		id:       "understated_intellectual",
		required: map[string]string{dimTime: TimeDaytime, dimLoyalty: LoyaltyExplorer, dimShuffle: ShuffleIntentional, dimSkip: SkipCommitted},
	},
	{
		id:       "wind_down_ritualist",
		required: map[string]string{dimTime: TimeEvening, dimLoyalty: LoyaltyLoyalist, dimSession: SessionBinger},
	},
	{
		id:       "casual",
		required: map[string]string{dimSession: SessionDipper, dimSkip: SkipSelective},
	},
	{
		id:       "festival_goer",
		required: map[string]string{dimLoyalty: LoyaltyExplorer, dimSkip: SkipRestless},
		bonus:    func(inputs *models.PersonalityInputs) bool { return inputs.UniqueArtistCount > 150 },
	},
}

// Personalities is the display definition table, keyed by personality ID.
var Personalities = map[string]Definition{
	"main_character": {
		Name:        "The Main Character",
		Emoji:       "👑",
		Description: "You don't follow playlists, playlists follow you. Always onto the next thing before anyone else has even heard it. Your skip button has more miles on it than most people's entire libraries.",
	},
	"npc": {
		Name:        "The NPC",
		Emoji:       "🎧",
		Description: "You found your 5 artists in 2019 and honestly? Life is good. Shuffle on, no complaints, no skips. You're not a prisoner of the algorithm — you're at peace with it.",
	},
	"served": {
		Name:        "Served",
		Emoji:       "🍽️",
		Description: "You consume music like it's a 12-course tasting menu and you're never full. New artist? Ate. Deep cut B-side? Ate. Three-hour session on a Tuesday? Said yes and stayed for dessert.",
	},
	"creature_of_habit": {
		Name:        "The Creature of Habit",
		Emoji:       "☀️",
		Description: "Same artists, same morning routine, same energy. Comforting to some, iconic to you.",
	},
	"chronically_online": {
		Name:        "The Chronically Online",
		Emoji:       "🌙",
		Description: "It's 3am, you're on your 4th relisten of the same album, and you feel absolutely nothing is wrong with this.",
	},
	"understated_intellectual": {
		Name:        "The Understated Intellectual",
		Emoji:       "🎼",
		Description: "No shuffle. Deliberate playlists. You've heard of artists people won't discover for two years. You don't tell people this unprompted — but you could.",
	},
	"wind_down_ritualist": {
		Name:        "The Wind-Down Ritualist",
		Emoji:       "🌙",
		Description: "Music as a decompression chamber. Same vibes, long sessions, earned.",
	},
	"casual": {
		Name:        "The Casual Girlypop",
		Emoji:       "✨",
		Description: "Short sessions, curated skips, never overcommits. You're having fun but you're not obsessed. Healthy relationship with music. Rare.",
	},
	"festival_goer": {
		Name:        "The Festival Goer",
		Emoji:       "🎪",
		Description: "You have listened to 847 unique artists this year and can name maybe 12 of them. No notes.",
	},
}

// IsKnown reports whether the ID names a defined personality.
func IsKnown(id string) bool {
	_, ok := Personalities[id]
	return ok
}

// ScoreDimensions derives the five dimension values from the input signals.
func ScoreDimensions(inputs *models.PersonalityInputs) Dimensions {
	var d Dimensions

	best := timeOrder[0]
	var bestTotal int64 = -1
	for _, label := range timeOrder {
		var total int64
		for _, h := range timeBuckets[label] {
			total += inputs.HourTotals[h]
		}
		if total > bestTotal {
			best = label
			bestTotal = total
		}
	}
	d.TimeOfDay = best

	switch {
	case inputs.Top10ArtistMsPct >= 70:
		d.Loyalty = LoyaltyLoyalist
	case inputs.Top10ArtistMsPct >= 40:
		d.Loyalty = LoyaltyBalanced
	default:
		d.Loyalty = LoyaltyExplorer
	}

	switch {
	case inputs.GlobalSkipRate >= 50:
		d.SkipBehavior = SkipRestless
	case inputs.GlobalSkipRate >= 20:
		d.SkipBehavior = SkipSelective
	default:
		d.SkipBehavior = SkipCommitted
	}

	// Average song length is about 4 minutes, so 30 songs is roughly a
	// two-hour sit and 7.5 songs a half hour.
	switch {
	case inputs.AvgChainLength >= 30:
		d.SessionStyle = SessionBinger
	case inputs.AvgChainLength >= 7.5:
		d.SessionStyle = SessionRegular
	default:
		d.SessionStyle = SessionDipper
	}

	if inputs.ShuffleRate >= 50 {
		d.ShuffleStyle = ShuffleGoesWithFlow
	} else {
		d.ShuffleStyle = ShuffleIntentional
	}

	return d
}

// Classify picks the best-matching personality for the input signals.
func Classify(inputs *models.PersonalityInputs) Result {
	dims := ScoreDimensions(inputs)
	dimValues := map[string]string{
		dimTime:    dims.TimeOfDay,
		dimLoyalty: dims.Loyalty,
		dimSkip:    dims.SkipBehavior,
		dimSession: dims.SessionStyle,
		dimShuffle: dims.ShuffleStyle,
	}

	bestID := matchers[0].id
	bestScore := -1.0
	for _, m := range matchers {
		matched := lo.CountBy(lo.Entries(m.required), func(e lo.Entry[string, string]) bool {
			return dimValues[e.Key] == e.Value
		})
		score := float64(matched) / float64(len(m.required))
		if m.bonus != nil && m.bonus(inputs) {
			score += 0.2
		}
		if score > bestScore {
			bestID = m.id
			bestScore = score
		}
	}

	def := Personalities[bestID]
	return Result{
		ID:          bestID,
		Name:        def.Name,
		Emoji:       def.Emoji,
		Description: def.Description,
		Dimensions:  dims,
		FunStat:     funStat(dims, inputs),
	}
}

// funStat picks one vivid number to show alongside the personality.
func funStat(dims Dimensions, inputs *models.PersonalityInputs) string {
	var nightMs, totalMs int64
	for _, h := range timeBuckets[TimeNightOwl] {
		nightMs += inputs.HourTotals[h]
	}
	for _, v := range inputs.HourTotals {
		totalMs += v
	}
	var nightPct int
	if totalMs > 0 {
		nightPct = int(math.Round(float64(nightMs) / float64(totalMs) * 100))
	}

	switch {
	case dims.TimeOfDay == TimeNightOwl:
		return fmt.Sprintf("%d%% of your listening happens after 10pm.", nightPct)
	case dims.Loyalty == LoyaltyExplorer:
		return fmt.Sprintf("You've explored %s unique artists.", utils.GroupThousands(inputs.UniqueArtistCount))
	case dims.SessionStyle == SessionBinger:
		return fmt.Sprintf("Your average listening run is %d songs straight.", int(math.Round(inputs.AvgChainLength)))
	case dims.SkipBehavior == SkipCommitted:
		return fmt.Sprintf("You skip less than %d%% of songs you start. Rare.", int(math.Ceil(inputs.GlobalSkipRate)))
	case dims.ShuffleStyle == ShuffleIntentional:
		return fmt.Sprintf("Only %d%% of your listening is on shuffle. You came prepared.", int(math.Round(inputs.ShuffleRate)))
	default:
		return fmt.Sprintf("You've listened to %s unique artists.", utils.GroupThousands(inputs.UniqueArtistCount))
	}
}
