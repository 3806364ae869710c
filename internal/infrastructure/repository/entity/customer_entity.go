package entity

import (
	"time"

	"call-companion-core/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoCustomerDoc represents a customer record in MongoDB
type MongoCustomerDoc struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	BusinessID         string             `bson:"businessId"`
	OwnerUserID        string             `bson:"ownerUserId"`
	CollectionID       string             `bson:"collectionId"`
	Name               string             `bson:"name"`
	Company            string             `bson:"company,omitempty"`
	Phone              string             `bson:"phone,omitempty"`
	Status             string             `bson:"status,omitempty"`
	Remark             string             `bson:"remark,omitempty"`
	NextCallDate       string             `bson:"nextCallDate,omitempty"`
	NextCallTime       string             `bson:"nextCallTime,omitempty"`
	LastCallDate       string             `bson:"lastCallDate,omitempty"`
	ExternalAttributes map[string]string  `bson:"externalAttributes,omitempty"`
	ExternalLeadID     string             `bson:"externalLeadId,omitempty"`
	Position           int64              `bson:"position"`
	Deleted            bool               `bson:"deleted"`
	CreatedAt          time.Time          `bson:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt"`
}

// CustomerFieldKeys maps record field keys to document keys
var CustomerFieldKeys = map[string]string{
	domain.FieldName:         "name",
	domain.FieldCompany:      "company",
	domain.FieldPhone:        "phone",
	domain.FieldStatus:       "status",
	domain.FieldRemark:       "remark",
	domain.FieldNextCallDate: "nextCallDate",
	domain.FieldNextCallTime: "nextCallTime",
	domain.FieldLastCallDate: "lastCallDate",
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoCustomerDoc) ToDomain() *domain.CustomerRecord {
	return &domain.CustomerRecord{
		ID:                 d.ID.Hex(),
		BusinessID:         d.BusinessID,
		OwnerUserID:        d.OwnerUserID,
		CollectionID:       d.CollectionID,
		Name:               d.Name,
		Company:            d.Company,
		Phone:              d.Phone,
		Status:             d.Status,
		Remark:             d.Remark,
		NextCallDate:       d.NextCallDate,
		NextCallTime:       d.NextCallTime,
		LastCallDate:       d.LastCallDate,
		ExternalAttributes: d.ExternalAttributes,
		ExternalLeadID:     d.ExternalLeadID,
		Position:           d.Position,
		Deleted:            d.Deleted,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// MongoCustomerDocFromDomain converts a domain entity to a MongoDB document
func MongoCustomerDocFromDomain(record *domain.CustomerRecord) *MongoCustomerDoc {
	doc := &MongoCustomerDoc{
		BusinessID:         record.BusinessID,
		OwnerUserID:        record.OwnerUserID,
		CollectionID:       record.CollectionID,
		Name:               record.Name,
		Company:            record.Company,
		Phone:              record.Phone,
		Status:             record.Status,
		Remark:             record.Remark,
		NextCallDate:       record.NextCallDate,
		NextCallTime:       record.NextCallTime,
		LastCallDate:       record.LastCallDate,
		ExternalAttributes: record.ExternalAttributes,
		ExternalLeadID:     record.ExternalLeadID,
		Position:           record.Position,
		Deleted:            record.Deleted,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}

	if record.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(record.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
