package model

// City is the closed set of served cities.
type City string

const (
	CityChandigarh City = "Chandigarh"
	CityMohali     City = "Mohali"
	CityZirakpur   City = "Zirakpur"
	CityPanchkula  City = "Panchkula"
	CityOther      City = "Other"
)

// PropertyType is the kind of property a buyer is looking for.
type PropertyType string

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyVilla     PropertyType = "Villa"
	PropertyPlot      PropertyType = "Plot"
	PropertyOffice    PropertyType = "Office"
	PropertyRetail    PropertyType = "Retail"
)

// NeedsBHK reports whether a bedroom class is mandatory for this property type.
func (p PropertyType) NeedsBHK() bool { return p == PropertyApartment || p == PropertyVilla }

// BHK is the bedroom-count class.
type BHK string

const (
	BHKStudio BHK = "Studio"
	BHKOne    BHK = "One"
	BHKTwo    BHK = "Two"
	BHKThree  BHK = "Three"
	BHKFour   BHK = "Four"
)

// Purpose is the transaction purpose.
type Purpose string

const (
	PurposeBuy  Purpose = "Buy"
	PurposeRent Purpose = "Rent"
)

// Source is where the lead came from.
type Source string

const (
	SourceWebsite  Source = "Website"
	SourceReferral Source = "Referral"
	SourceWalkIn   Source = "Walk_in"
	SourceCall     Source = "Call"
	SourceOther    Source = "Other"
)

// Status is the lead pipeline status.
type Status string

const (
	StatusNew         Status = "New"
	StatusQualified   Status = "Qualified"
	StatusContacted   Status = "Contacted"
	StatusVisited     Status = "Visited"
	StatusNegotiation Status = "Negotiation"
	StatusConverted   Status = "Converted"
	StatusDropped     Status = "Dropped"
)

// Enumerations in declaration order, used by validation messages and tests.
var (
	Cities        = []City{CityChandigarh, CityMohali, CityZirakpur, CityPanchkula, CityOther}
	PropertyTypes = []PropertyType{PropertyApartment, PropertyVilla, PropertyPlot, PropertyOffice, PropertyRetail}
	BHKs          = []BHK{BHKStudio, BHKOne, BHKTwo, BHKThree, BHKFour}
	Purposes      = []Purpose{PurposeBuy, PurposeRent}
	Sources       = []Source{SourceWebsite, SourceReferral, SourceWalkIn, SourceCall, SourceOther}
	Statuses      = []Status{StatusNew, StatusQualified, StatusContacted, StatusVisited, StatusNegotiation, StatusConverted, StatusDropped}
)

// Enum is any of the closed string sets above.
type Enum interface {
	~string
}

// ParseEnum returns the member of set equal to s.
func ParseEnum[E Enum](set []E, s string) (E, bool) {
	for _, v := range set {
		if string(v) == s {
			return v, true
		}
	}
	var zero E
	return zero, false
}
