package geo

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// Candidate исполнитель, прошедший все фильтры, с расстоянием до гига.
type Candidate struct {
	ProviderID uuid.UUID `json:"provider_id"`
	DistanceKm float64   `json:"distance_km"`
	RatingAvg  float64   `json:"rating_avg"`
}

// Location возвращает текущую позицию исполнителя, иначе общий район.
func Location(a *models.UserAvailability) (Point, bool) {
	if a.CurrentLat != nil && a.CurrentLng != nil {
		return Point{Lat: *a.CurrentLat, Lng: *a.CurrentLng}, true
	}
	if a.GeneralAreaLat != nil && a.GeneralAreaLng != nil {
		return Point{Lat: *a.GeneralAreaLat, Lng: *a.GeneralAreaLng}, true
	}
	return Point{}, false
}

// FilterCandidates отбирает исполнителей для гига и сортирует их по расстоянию,
// затем по рейтингу (по убыванию), затем по id.
func FilterCandidates(gig *models.UrgentGig, providers []models.ProviderCandidate) []Candidate {
	origin := Point{Lat: gig.LocationLat, Lng: gig.LocationLng}
	result := make([]Candidate, 0, len(providers))

	for i := range providers {
		p := &providers[i]
		if p.UserID == gig.RequesterID || !p.AvailableForUrgentGigs {
			continue
		}
		if !hasSkill(p.Skills, gig.SkillRequired) || !genresOverlap(gig.Genres, p.Genres) {
			continue
		}
		if p.MaxNotificationsPerDay <= p.NotificationsToday {
			continue
		}

		loc, ok := Location(&p.UserAvailability)
		if !ok {
			continue
		}
		distance := Haversine(origin, loc)
		if distance > gig.LocationRadiusKm || distance > p.MaxRadiusKm {
			continue
		}

		if inDND(&p.UserAvailability, gig.DateNeeded) {
			continue
		}
		if !withinSchedule(&p.UserAvailability, gig.DateNeeded) {
			continue
		}

		result = append(result, Candidate{
			ProviderID: p.UserID,
			DistanceKm: distance,
			RatingAvg:  p.RatingAvg,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.RatingAvg != b.RatingAvg {
			return a.RatingAvg > b.RatingAvg
		}
		return a.ProviderID.String() < b.ProviderID.String()
	})

	return result
}

func hasSkill(skills []string, required string) bool {
	for _, s := range skills {
		if strings.EqualFold(s, required) {
			return true
		}
	}
	return false
}

// genresOverlap: гиг без жанров подходит любому исполнителю.
func genresOverlap(gigGenres, providerGenres []string) bool {
	if len(gigGenres) == 0 {
		return true
	}
	for _, g := range gigGenres {
		for _, pg := range providerGenres {
			if strings.EqualFold(g, pg) {
				return true
			}
		}
	}
	return false
}

func inDND(a *models.UserAvailability, at time.Time) bool {
	if a.DNDStart == nil || a.DNDEnd == nil {
		return false
	}
	start, err := ParseClock(*a.DNDStart)
	if err != nil {
		return false
	}
	end, err := ParseClock(*a.DNDEnd)
	if err != nil {
		return false
	}
	return ClockWindow{Start: start, End: end}.Contains(at)
}

// withinSchedule: без расписания исполнитель доступен всегда; битое расписание
// исключает исполнителя.
func withinSchedule(a *models.UserAvailability, at time.Time) bool {
	schedule, err := ParseSchedule(a.AvailabilitySchedule)
	if err != nil {
		return false
	}
	if schedule == nil {
		return true
	}
	return schedule.Allows(at)
}
