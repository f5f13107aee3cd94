package validation

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxSkillLength           = 50
	MaxGenresCount           = 20
	MaxAddressLength         = 300
	MaxGigDescriptionLength  = 5000
	MaxDisputeReasonLength   = 200
	MaxDisputeDescLength     = 5000
	MaxReviewLength          = 2000
	MaxResolutionNoteLength  = 2000
	MaxRadiusKm              = 500.0
	MaxDurationHours         = 72.0
	MaxNotificationsPerDay   = 200
	MaxPaymentMethodIDLength = 255
	MaxExternalLinkLength    = 500
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateSkill проверяет требуемый навык гига.
func ValidateSkill(skill string) error {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return fmt.Errorf("skill_required обязателен")
	}
	return ValidateLength("навык", skill, 1, MaxSkillLength)
}

// NormalizeGenres убирает пустые значения и дубликаты (без учёта регистра).
func NormalizeGenres(genres []string) ([]string, error) {
	if len(genres) > MaxGenresCount {
		return nil, fmt.Errorf("количество жанров не может превышать %d", MaxGenresCount)
	}

	seen := make(map[string]bool, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if utf8.RuneCountInString(g) > MaxSkillLength {
			return nil, fmt.Errorf("жанр не может быть длиннее %d символов", MaxSkillLength)
		}
		key := strings.ToLower(g)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	return out, nil
}

// ValidateCoordinates проверяет широту и долготу в десятичных градусах.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("координаты должны быть числами")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180]")
	}
	return nil
}

// ValidateRadius проверяет радиус поиска в километрах.
func ValidateRadius(fieldName string, radiusKm float64) error {
	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		return fmt.Errorf("%s должен быть больше нуля", fieldName)
	}
	if radiusKm > MaxRadiusKm {
		return fmt.Errorf("%s не может превышать %.0f км", fieldName, MaxRadiusKm)
	}
	return nil
}

// ValidateScore проверяет оценку по шкале 1..5.
func ValidateScore(fieldName string, score int) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("%s должна быть от 1 до 5", fieldName)
	}
	return nil
}

// ValidateExternalLink проверяет внешнюю ссылку.
func ValidateExternalLink(link string) error {
	link = strings.TrimSpace(link)
	if err := ValidateLength("ссылка", link, 1, MaxExternalLinkLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}
