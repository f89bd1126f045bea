package server

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ContactEntity is the cache namespace and collection name for contacts.
const ContactEntity = "contact"

// Contact is the scaffold's demo entity.
type Contact struct {
	ID        string    `bson:"_id" json:"id"`
	FirstName string    `bson:"firstName" json:"firstName"`
	LastName  string    `bson:"lastName" json:"lastName"`
	Email     string    `bson:"email" json:"email"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (c *Contact) DocumentID() string      { return c.ID }
func (c *Contact) SetDocumentID(id string) { c.ID = id }

// ContactIndexes are the indexes the contacts collection needs: unique
// email, and the default list sort field.
func ContactIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	}
}

type createContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type updateContactRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

// fields returns the partial update as document-store field assignments.
func (r updateContactRequest) fields(now time.Time) map[string]any {
	fields := map[string]any{"updatedAt": now}
	if r.FirstName != nil {
		fields["firstName"] = *r.FirstName
	}
	if r.LastName != nil {
		fields["lastName"] = *r.LastName
	}
	if r.Email != nil {
		fields["email"] = *r.Email
	}
	return fields
}
