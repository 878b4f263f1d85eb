package extractor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// UnknownBrand is the placeholder brand used when no stage resolves one.
	UnknownBrand = "Unknown brand"
	// UnknownModel is the placeholder model paired with UnknownBrand.
	UnknownModel = "Unknown model"
)

// Transmission is the gearbox type mentioned in a listing.
type Transmission int

const (
	TransmissionUnknown Transmission = iota
	TransmissionAutomatic
	TransmissionManual
)

func (t Transmission) String() string {
	switch t {
	case TransmissionAutomatic:
		return "automatic"
	case TransmissionManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseTransmission is the inverse of Transmission.String.
func ParseTransmission(s string) Transmission {
	switch s {
	case "automatic":
		return TransmissionAutomatic
	case "manual":
		return TransmissionManual
	default:
		return TransmissionUnknown
	}
}

// DriveType is the drivetrain mentioned in a listing.
type DriveType int

const (
	DriveUnknown DriveType = iota
	DriveFront
	DriveRear
	DriveAllWheel
)

func (d DriveType) String() string {
	switch d {
	case DriveFront:
		return "front"
	case DriveRear:
		return "rear"
	case DriveAllWheel:
		return "all_wheel"
	default:
		return "unknown"
	}
}

// ParseDriveType is the inverse of DriveType.String.
func ParseDriveType(s string) DriveType {
	switch s {
	case "front":
		return DriveFront
	case "rear":
		return DriveRear
	case "all_wheel":
		return DriveAllWheel
	default:
		return DriveUnknown
	}
}

// CarAttributes holds the structured fields recovered from listing text.
// Optional fields are nil (or empty) when nothing plausible was found.
type CarAttributes struct {
	Brand        string
	Model        string
	Year         *int
	Price        *decimal.Decimal
	Currency     string
	Mileage      *int
	EngineVolume string
	Transmission Transmission
	DriveType    DriveType
}

// BrandResolved reports whether a real brand was found.
func (a CarAttributes) BrandResolved() bool {
	return a.Brand != "" && a.Brand != UnknownBrand
}

// Merge returns a copy of a where every field a lacks is taken from fallback.
func (a CarAttributes) Merge(fallback CarAttributes) CarAttributes {
	out := a
	if !out.BrandResolved() && fallback.BrandResolved() {
		out.Brand = fallback.Brand
		out.Model = fallback.Model
	}
	if out.Year == nil {
		out.Year = fallback.Year
	}
	if out.Price == nil {
		out.Price = fallback.Price
		out.Currency = fallback.Currency
	}
	if out.Mileage == nil {
		out.Mileage = fallback.Mileage
	}
	if out.EngineVolume == "" {
		out.EngineVolume = fallback.EngineVolume
	}
	if out.Transmission == TransmissionUnknown {
		out.Transmission = fallback.Transmission
	}
	if out.DriveType == DriveUnknown {
		out.DriveType = fallback.DriveType
	}
	return out
}

// String renders the attributes in the template the extractor reads back,
// so Extract(a.String()) yields a again for resolved listings.
func (a CarAttributes) String() string {
	var lines []string

	if a.BrandResolved() {
		if a.Year != nil {
			lines = append(lines, fmt.Sprintf("[%s] [%s] [%d]", a.Brand, a.Model, *a.Year))
		} else {
			lines = append(lines, strings.TrimSpace(a.Brand+" "+a.Model))
		}
	} else if a.Year != nil {
		lines = append(lines, fmt.Sprintf("Год: %d", *a.Year))
	}

	if a.Price != nil {
		if a.Currency != "" {
			lines = append(lines, fmt.Sprintf("Цена: %s %s", a.Price.String(), a.Currency))
		} else {
			lines = append(lines, fmt.Sprintf("Цена: %s", a.Price.String()))
		}
	}
	if a.Mileage != nil {
		lines = append(lines, fmt.Sprintf("Пробег: %d км", *a.Mileage))
	}
	if a.EngineVolume != "" {
		lines = append(lines, fmt.Sprintf("Двигатель: %s л", a.EngineVolume))
	}
	switch a.Transmission {
	case TransmissionAutomatic:
		lines = append(lines, "Коробка: автомат")
	case TransmissionManual:
		lines = append(lines, "Коробка: механика")
	}
	switch a.DriveType {
	case DriveAllWheel:
		lines = append(lines, "Привод: полный привод")
	case DriveFront:
		lines = append(lines, "Привод: передний привод")
	case DriveRear:
		lines = append(lines, "Привод: задний привод")
	}

	return strings.Join(lines, "\n")
}

func intPtr(v int) *int { return &v }
