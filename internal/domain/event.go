package domain

import (
	"encoding/json"
	"net/url"
)

// StorageEvent is an object-created notification in the S3 event shape.
type StorageEvent struct {
	Records []EventRecord `json:"Records"`
}

// EventRecord is one record of a StorageEvent.
type EventRecord struct {
	EventName string `json:"eventName,omitempty"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size,omitempty"`
		} `json:"object"`
	} `json:"s3"`
}

// ObjectRef locates one stored object.
type ObjectRef struct {
	Bucket string
	Key    string
}

// ParseStorageEvent decodes a notification body.
func ParseStorageEvent(body []byte) (*StorageEvent, error) {
	var ev StorageEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, ErrValidation("invalid event: %v", err)
	}
	return &ev, nil
}

// NewStorageEvent builds a single-record event for bucket/key.
func NewStorageEvent(bucket, key string) *StorageEvent {
	var rec EventRecord
	rec.EventName = "ObjectCreated:Put"
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = url.QueryEscape(key)
	return &StorageEvent{Records: []EventRecord{rec}}
}

// Object returns the bucket and decoded key of the first record.
// Notification keys are form-encoded ("+" for space, %XX escapes).
func (e *StorageEvent) Object() (ObjectRef, error) {
	if e == nil || len(e.Records) == 0 {
		return ObjectRef{}, ErrValidation("event has no records")
	}
	rec := e.Records[0]
	if rec.S3.Bucket.Name == "" || rec.S3.Object.Key == "" {
		return ObjectRef{}, ErrValidation("event record is missing bucket or key")
	}
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return ObjectRef{}, ErrValidation("invalid object key %q: %v", rec.S3.Object.Key, err)
	}
	return ObjectRef{Bucket: rec.S3.Bucket.Name, Key: key}, nil
}
