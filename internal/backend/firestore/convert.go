package firestore

import (
	"path"
	"time"

	firestore "google.golang.org/api/firestore/v1"

	"cloudtodo/internal/dates"
	"cloudtodo/internal/service"
)

const nullValue = "NULL_VALUE"

// documentFromRecord encodes rec as a document named name. Absent dates are
// stored as null and an empty UserID is omitted.
func documentFromRecord(name string, rec service.Record) *firestore.Document {
	fields := map[string]firestore.Value{
		"title":     {StringValue: rec.Title, ForceSendFields: []string{"StringValue"}},
		"completed": boolValue(rec.Completed),
		"category":  {StringValue: rec.Category, ForceSendFields: []string{"StringValue"}},
		"startDate": timeValue(rec.StartDate),
		"dueDate":   timeValue(rec.DueDate),
	}
	if rec.UserID != "" {
		fields["userId"] = firestore.Value{StringValue: rec.UserID}
	}
	if !rec.CreatedAt.IsZero() {
		fields["createdAt"] = firestore.Value{TimestampValue: rec.CreatedAt.UTC().Format(time.RFC3339Nano)}
	}
	if !rec.UpdatedAt.IsZero() {
		fields["updatedAt"] = firestore.Value{TimestampValue: rec.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	}
	return &firestore.Document{Name: name, Fields: fields}
}

// recordFromDocument decodes a task document of either schema.
// Documents written by older clients carry the label as "text" and dates as
// strings; both are accepted. A missing createdAt falls back to the
// document's create time.
func recordFromDocument(doc *firestore.Document) service.Record {
	rec := service.Record{ID: path.Base(doc.Name)}
	f := doc.Fields

	rec.Title = f["title"].StringValue
	if rec.Title == "" {
		rec.Title = f["text"].StringValue
	}
	rec.Completed = f["completed"].BooleanValue
	rec.UserID = f["userId"].StringValue
	rec.Category = f["category"].StringValue
	rec.StartDate = dateField(f["startDate"])
	rec.DueDate = dateField(f["dueDate"])

	if t := dateField(f["createdAt"]); t != nil {
		rec.CreatedAt = *t
	} else {
		rec.CreatedAt = parseTime(doc.CreateTime)
	}
	if t := dateField(f["updatedAt"]); t != nil {
		rec.UpdatedAt = *t
	} else {
		rec.UpdatedAt = parseTime(doc.UpdateTime)
	}
	return rec
}

func boolValue(b bool) firestore.Value {
	return firestore.Value{BooleanValue: b, ForceSendFields: []string{"BooleanValue"}}
}

func timeValue(t *time.Time) firestore.Value {
	if t == nil {
		return firestore.Value{NullValue: nullValue}
	}
	return firestore.Value{TimestampValue: t.UTC().Format(time.RFC3339Nano)}
}

func dateField(v firestore.Value) *time.Time {
	switch {
	case v.TimestampValue != "":
		t, err := time.Parse(time.RFC3339Nano, v.TimestampValue)
		if err != nil {
			return nil
		}
		t = t.In(time.Local)
		return &t
	case v.StringValue != "":
		t, ok := dates.Parse(v.StringValue)
		if !ok {
			return nil
		}
		return &t
	default:
		return nil
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
