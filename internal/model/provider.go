package model

// ProviderID identifies one of the supported disposable mail backends.
type ProviderID string

const (
	ProviderOneSecMail ProviderID = "1secmail"
	ProviderMailTM     ProviderID = "mailtm"
	ProviderGuerrilla  ProviderID = "guerrilla"
)

// ProviderRotation is the fixed order used when switching providers.
var ProviderRotation = []ProviderID{
	ProviderOneSecMail,
	ProviderMailTM,
	ProviderGuerrilla,
}

// Valid reports whether p names a known provider.
func (p ProviderID) Valid() bool {
	for _, id := range ProviderRotation {
		if id == p {
			return true
		}
	}
	return false
}

// Next returns the provider following p in the rotation. Unknown ids
// restart the rotation at its first entry.
func (p ProviderID) Next() ProviderID {
	for i, id := range ProviderRotation {
		if id == p {
			return ProviderRotation[(i+1)%len(ProviderRotation)]
		}
	}
	return ProviderRotation[0]
}

// DisplayName returns the human-readable provider name.
func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderOneSecMail:
		return "1secmail"
	case ProviderMailTM:
		return "Mail.tm"
	case ProviderGuerrilla:
		return "Guerrilla Mail"
	default:
		return string(p)
	}
}
