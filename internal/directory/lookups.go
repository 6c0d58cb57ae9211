package directory

import (
	"fmt"
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ashureev/voicecall/internal/domain"
)

// Lookup is one attempt to find a document: match Field against the value
// derived from a key.
// Value reports false when the key cannot produce a value for this lookup.
type Lookup[K any] struct {
	Field string
	Value func(K) (any, bool)
}

// Filter builds the query for key, or reports false if the lookup does not apply.
func (p Lookup[K]) Filter(key K) (bson.M, bool) {
	v, ok := p.Value(key)
	if !ok {
		return nil, false
	}
	return bson.M{p.Field: v}, true
}

// PhoneLookups are tried in order when a phone number is supplied.
// Profiles store the dialable form in phone_number; older records use
// the 10-digit form or the phone field.
var PhoneLookups = []Lookup[domain.NormalizedContact]{
	{Field: "phone_number", Value: dialable},
	{Field: "phone_number", Value: phone10},
	{Field: "phone", Value: dialable},
	{Field: "phone", Value: phone10},
}

// EmailLookups are tried in order after the phone lookups miss.
var EmailLookups = []Lookup[domain.NormalizedContact]{
	{Field: "email", Value: email},
	{Field: "email", Value: emailPattern},
}

// AnalyticsLookups join an analytics record to a profile id. First hit wins.
var AnalyticsLookups = []Lookup[any]{
	{Field: "user_id", Value: objectID},
	{Field: "user_id", Value: idString},
	{Field: "id", Value: objectID},
	{Field: "id", Value: idString},
	{Field: "_id", Value: rawID},
	{Field: "userId", Value: idString},
}

func dialable(c domain.NormalizedContact) (any, bool) { return c.Dialable, c.Dialable != "" }

func phone10(c domain.NormalizedContact) (any, bool) { return c.Phone10, c.Phone10 != "" }

func email(c domain.NormalizedContact) (any, bool) { return c.Email, c.Email != "" }

func emailPattern(c domain.NormalizedContact) (any, bool) {
	if c.Email == "" {
		return nil, false
	}
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(c.Email) + "$", Options: "i"}, true
}

func objectID(id any) (any, bool) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v, true
	case string:
		oid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return nil, false
		}
		return oid, true
	default:
		return nil, false
	}
}

func idString(id any) (any, bool) {
	s := stringify(id)
	return s, s != ""
}

func rawID(id any) (any, bool) { return id, id != nil }

// stringify renders a document value as text. Numbers and booleans stored by
// older writers are accepted alongside strings.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case primitive.ObjectID:
		return x.Hex()
	case bool:
		return strconv.FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// firstField returns the first non-empty value among the field-name variants.
func firstField(doc bson.M, names ...string) string {
	for _, name := range names {
		if s := stringify(doc[name]); s != "" {
			return s
		}
	}
	return ""
}

func projectProfile(doc bson.M) domain.UserProfile {
	return domain.UserProfile{
		Name:  firstField(doc, "name"),
		Email: firstField(doc, "email"),
		Phone: firstField(doc, "phone_number", "phone"),
	}
}

func projectAnalytics(doc bson.M) domain.AnalyticsRecord {
	if doc == nil {
		return domain.AnalyticsRecord{}
	}
	return domain.AnalyticsRecord{
		CourseInterest: firstField(doc, "course_interest", "course interest"),
		City:           firstField(doc, "city"),
		Budget:         firstField(doc, "budget"),
		HostelNeeded:   firstField(doc, "hostel_needed", "hostel needed"),
		IntentLevel:    firstField(doc, "intent_level", "intent level"),
	}
}
