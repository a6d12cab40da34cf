package domain

import "time"

// Profile is the 1:1 display and ritual-preference extension of a User.
// Empty strings mean unset.
type Profile struct {
	FullName           string    `json:"fullName"`
	DisplayName        string    `json:"displayName,omitempty"`
	AvatarURL          string    `json:"avatarUrl,omitempty"`
	DateOfBirth        string    `json:"dateOfBirth,omitempty"`
	PlaceOfBirth       string    `json:"placeOfBirth,omitempty"`
	TimeOfBirth        string    `json:"timeOfBirth,omitempty"`
	Gotra              string    `json:"gotra,omitempty"`
	Nakshatra          string    `json:"nakshatra,omitempty"`
	Rashi              string    `json:"rashi,omitempty"`
	LanguagePreference string    `json:"languagePreference"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// IsComplete reports whether the minimum profile (a full name) is filled in.
func (p *Profile) IsComplete() bool {
	return p != nil && p.FullName != ""
}

// ProfileUpdate is a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	FullName           *string `json:"fullName"`
	DisplayName        *string `json:"displayName"`
	AvatarURL          *string `json:"avatarUrl"`
	DateOfBirth        *string `json:"dateOfBirth"`
	PlaceOfBirth       *string `json:"placeOfBirth"`
	TimeOfBirth        *string `json:"timeOfBirth"`
	Gotra              *string `json:"gotra"`
	Nakshatra          *string `json:"nakshatra"`
	Rashi              *string `json:"rashi"`
	LanguagePreference *string `json:"languagePreference"`
}

// Apply copies the set fields of u onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.FullName, u.FullName)
	set(&p.DisplayName, u.DisplayName)
	set(&p.AvatarURL, u.AvatarURL)
	set(&p.DateOfBirth, u.DateOfBirth)
	set(&p.PlaceOfBirth, u.PlaceOfBirth)
	set(&p.TimeOfBirth, u.TimeOfBirth)
	set(&p.Gotra, u.Gotra)
	set(&p.Nakshatra, u.Nakshatra)
	set(&p.Rashi, u.Rashi)
	set(&p.LanguagePreference, u.LanguagePreference)
}

// DefaultLanguage is the language assigned at registration when none is given.
const DefaultLanguage = "en"

var languages = map[string]bool{"en": true, "hi": true, "te": true, "ta": true, "kn": true, "ml": true}

// IsSupportedLanguage reports whether code is an accepted language preference.
func IsSupportedLanguage(code string) bool {
	return languages[code]
}
