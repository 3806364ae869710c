package domain

import (
	"strings"
	"time"
)

// Field keys accepted by record updates and field mappings
const (
	FieldName         = "name"
	FieldCompany      = "company"
	FieldPhone        = "phone"
	FieldStatus       = "status"
	FieldRemark       = "remark"
	FieldNextCallDate = "next_call_date"
	FieldNextCallTime = "next_call_time"
	FieldLastCallDate = "last_call_date"

	// AttributeFieldPrefix addresses a key inside ExternalAttributes, e.g. "attributes.budget"
	AttributeFieldPrefix = "attributes."
)

// CustomerRecord represents one owner's copy of a customer
type CustomerRecord struct {
	ID           string `json:"id"`
	BusinessID   string `json:"business_id"`
	OwnerUserID  string `json:"owner_user_id"`
	CollectionID string `json:"collection_id"` // Spreadsheet/list inside the CRM the record belongs to

	Name    string `json:"name"`
	Company string `json:"company"`
	Phone   string `json:"phone"`
	Status  string `json:"status"`
	Remark  string `json:"remark"`

	NextCallDate string `json:"next_call_date"`
	NextCallTime string `json:"next_call_time"`
	LastCallDate string `json:"last_call_date"`

	// ExternalAttributes holds source-provided fields (ad form answers and the like)
	ExternalAttributes map[string]string `json:"external_attributes,omitempty"`
	// ExternalLeadID is set only for records materialized from an inbound lead
	ExternalLeadID string `json:"external_lead_id,omitempty"`

	Position  int64     `json:"position"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasExternalLead reports whether the record came from an inbound lead
func (c *CustomerRecord) HasExternalLead() bool {
	return c.ExternalLeadID != ""
}

// FieldValue returns the value of a known field, or of an external attribute
// when the key is not a known field. The second result is false if neither exists.
func (c *CustomerRecord) FieldValue(key string) (string, bool) {
	switch key {
	case FieldName:
		return c.Name, true
	case FieldCompany:
		return c.Company, true
	case FieldPhone:
		return c.Phone, true
	case FieldStatus:
		return c.Status, true
	case FieldRemark:
		return c.Remark, true
	case FieldNextCallDate:
		return c.NextCallDate, true
	case FieldNextCallTime:
		return c.NextCallTime, true
	case FieldLastCallDate:
		return c.LastCallDate, true
	}

	value, ok := c.ExternalAttributes[strings.TrimPrefix(key, AttributeFieldPrefix)]
	return value, ok
}

// ApplyFields sets the given fields on the record in place. Unknown keys are
// written into ExternalAttributes.
func (c *CustomerRecord) ApplyFields(fields map[string]string) {
	for key, value := range fields {
		switch key {
		case FieldName:
			c.Name = value
		case FieldCompany:
			c.Company = value
		case FieldPhone:
			c.Phone = value
		case FieldStatus:
			c.Status = value
		case FieldRemark:
			c.Remark = value
		case FieldNextCallDate:
			c.NextCallDate = value
		case FieldNextCallTime:
			c.NextCallTime = value
		case FieldLastCallDate:
			c.LastCallDate = value
		default:
			attr := strings.TrimPrefix(key, AttributeFieldPrefix)
			if c.ExternalAttributes == nil {
				c.ExternalAttributes = make(map[string]string)
			}
			c.ExternalAttributes[attr] = value
		}
	}
}

// IsKnownField reports whether key names a first-class record field
func IsKnownField(key string) bool {
	switch key {
	case FieldName, FieldCompany, FieldPhone, FieldStatus, FieldRemark,
		FieldNextCallDate, FieldNextCallTime, FieldLastCallDate:
		return true
	}
	return false
}

// IsAttributeField reports whether key addresses an external attribute
func IsAttributeField(key string) bool {
	return strings.HasPrefix(key, AttributeFieldPrefix) && len(key) > len(AttributeFieldPrefix)
}

// LeadInput describes an inbound ad lead to materialize for one or more owners
type LeadInput struct {
	BusinessID     string
	ExternalLeadID string
	Name           string
	Company        string
	Phone          string
	Attributes     map[string]string
	Targets        []LeadTarget
}

// LeadTarget is one owner/collection that receives a copy of the lead
type LeadTarget struct {
	OwnerUserID  string `json:"owner_user_id"`
	CollectionID string `json:"collection_id"`
}
