package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxResellerLevel bounds the reseller chain above a customer.
const MaxResellerLevel = 3

// PostalAddress is an OA postal address.
type PostalAddress struct {
	CountryName     string `json:"countryName,omitempty"`
	ExtendedAddress string `json:"extendedAddress,omitempty"`
	Locality        string `json:"locality,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	Region          string `json:"region,omitempty"`
	StreetAddress   string `json:"streetAddress,omitempty"`
}

// TechContact is an OA technical contact.
type TechContact struct {
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	TelVoice   string `json:"telVoice,omitempty"`
}

// Account is an OA customer or reseller account.
type Account struct {
	APSID       string
	OSSID       string
	Type        string
	CompanyName string
	TaxID       string
	Address     PostalAddress
	Contact     TechContact
	Phone       Phone
	ParentID    string
}

type rawAccount struct {
	APS *struct {
		ID string `json:"id" validate:"required"`
	} `json:"aps" validate:"required"`
	ID          json.RawMessage `json:"id" validate:"required"`
	Type        string          `json:"type"`
	CompanyName *string         `json:"companyName" validate:"required"`
	TaxID       string          `json:"tax_id"`
	Address     *PostalAddress  `json:"addressPostal" validate:"required"`
	Contact     *TechContact    `json:"techContact" validate:"required"`
	Parent      struct {
		APS struct {
			ID string `json:"id"`
		} `json:"aps"`
	} `json:"parent"`
}

// NewAccount parses a raw OA account resource. It fails with a
// *MissingRequiredFieldError or an *InvalidPhoneError.
func NewAccount(raw []byte) (Account, error) {
	var ra rawAccount
	if err := json.Unmarshal(raw, &ra); err != nil {
		return Account{}, fmt.Errorf("decoding account: %w", err)
	}
	if err := validateStruct("account", ra); err != nil {
		return Account{}, err
	}

	phone, err := ParsePhone(ra.Contact.TelVoice)
	if err != nil {
		return Account{}, err
	}
	contact := *ra.Contact
	contact.TelVoice = phone.String()

	return Account{
		APSID:       ra.APS.ID,
		OSSID:       rawID(ra.ID),
		Type:        ra.Type,
		CompanyName: *ra.CompanyName,
		TaxID:       ra.TaxID,
		Address:     *ra.Address,
		Contact:     contact,
		Phone:       phone,
		ParentID:    ra.Parent.APS.ID,
	}, nil
}

// DummyAccount is the placeholder used to pad the reseller chain.
func DummyAccount() Account {
	return Account{}
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// TierAccount is the Connect representation of a tier account.
type TierAccount struct {
	ExternalUID string       `json:"external_uid,omitempty"`
	ExternalID  string       `json:"external_id,omitempty"`
	Name        string       `json:"name,omitempty"`
	TaxID       string       `json:"tax_id,omitempty"`
	Type        string       `json:"type,omitempty"`
	ContactInfo *ContactInfo `json:"contact_info,omitempty"`
}

// ContactInfo is a Connect tier contact block.
type ContactInfo struct {
	Country      string        `json:"country,omitempty"`
	AddressLine1 string        `json:"address_line1,omitempty"`
	AddressLine2 string        `json:"address_line2,omitempty"`
	City         string        `json:"city,omitempty"`
	State        string        `json:"state,omitempty"`
	PostalCode   string        `json:"postal_code,omitempty"`
	Contact      ContactPerson `json:"contact"`
}

// ContactPerson is the person behind a Connect contact block.
type ContactPerson struct {
	FirstName   string       `json:"first_name,omitempty"`
	LastName    string       `json:"last_name,omitempty"`
	Email       string       `json:"email,omitempty"`
	PhoneNumber *PhoneNumber `json:"phone_number,omitempty"`
}

// Tier renders the account in Connect public form. The dummy account renders
// as an empty object.
func (a Account) Tier() *TierAccount {
	if a.APSID == "" {
		return &TierAccount{}
	}
	return &TierAccount{
		ExternalUID: a.APSID,
		ExternalID:  a.OSSID,
		Name:        a.CompanyName,
		TaxID:       a.TaxID,
		Type:        a.Type,
		ContactInfo: &ContactInfo{
			Country:      a.Address.CountryName,
			AddressLine1: a.Address.StreetAddress,
			AddressLine2: a.Address.ExtendedAddress,
			City:         a.Address.Locality,
			State:        a.Address.Region,
			PostalCode:   a.Address.PostalCode,
			Contact: ContactPerson{
				FirstName:   a.Contact.GivenName,
				LastName:    a.Contact.FamilyName,
				Email:       a.Contact.Email,
				PhoneNumber: a.Phone.Public(),
			},
		},
	}
}

// AccountInfo is the accountInfo block stored on the OA tenant.
type AccountInfo struct {
	CompanyName   string        `json:"companyName"`
	TaxID         string        `json:"tax_id"`
	AddressPostal PostalAddress `json:"addressPostal"`
	TechContact   TechContact   `json:"techContact"`
}

// Info renders the account as the tenant accountInfo block.
func (a Account) Info() AccountInfo {
	return AccountInfo{
		CompanyName:   a.CompanyName,
		TaxID:         a.TaxID,
		AddressPostal: a.Address,
		TechContact:   a.Contact,
	}
}

// Subscription is the OA subscription a tenant belongs to.
type Subscription struct {
	APSID string
	OSSID string
	Name  string
}

// NewSubscription parses a raw OA subscription resource.
func NewSubscription(raw []byte) (Subscription, error) {
	var rs struct {
		APS *struct {
			ID string `json:"id" validate:"required"`
		} `json:"aps" validate:"required"`
		SubscriptionID json.RawMessage `json:"subscriptionId" validate:"required"`
		Name           *string         `json:"name" validate:"required"`
	}
	if err := json.Unmarshal(raw, &rs); err != nil {
		return Subscription{}, fmt.Errorf("decoding subscription: %w", err)
	}
	if err := validateStruct("subscription", rs); err != nil {
		return Subscription{}, err
	}
	return Subscription{APSID: rs.APS.ID, OSSID: rawID(rs.SubscriptionID), Name: *rs.Name}, nil
}
