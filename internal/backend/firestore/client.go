// Package firestore implements the service.Service interface using the
// Cloud Firestore REST API.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	firestore "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"cloudtodo/internal/config"
	"cloudtodo/internal/logging"
	"cloudtodo/internal/service"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	// PageSize is the number of documents fetched per list page.
	PageSize = 300

	// tasksCollection is both the per-user collection id and the legacy
	// top-level collection id.
	tasksCollection = "tasks"
	usersCollection = "users"

	// serverTime is the transform value stamping the commit time.
	serverTime = "REQUEST_TIME"
)

// Client implements service.Service using Cloud Firestore.
type Client struct {
	svc  *firestore.Service
	http *http.Client
	db   string // projects/{project}/databases/{database}
	log  *logrus.Logger
}

// New creates a Firestore client authenticated with ts, which supplies the
// signed-in user's ID token.
func New(ctx context.Context, cfg *config.Config, ts oauth2.TokenSource, log *logrus.Logger) (*Client, error) {
	fb := cfg.Settings.Firebase
	if fb.ProjectID == "" {
		return nil, fmt.Errorf("firebase project_id not set in %s", cfg.SettingsPath())
	}

	// Create HTTP client with token source
	httpClient := oauth2.NewClient(ctx, ts)

	c, err := newClient(ctx, httpClient, fb.ProjectID, fb.Database)
	if err != nil {
		return nil, err
	}
	if log != nil {
		c.log = log
	}
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoint
// (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint, projectID string) (*Client, error) {
	return newClient(ctx, httpClient, projectID, "", option.WithEndpoint(endpoint))
}

func newClient(ctx context.Context, httpClient *http.Client, projectID, database string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := firestore.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore service: %w", err)
	}
	if database == "" {
		database = "(default)"
	}
	return &Client{
		svc:  svc,
		http: httpClient,
		db:   fmt.Sprintf("projects/%s/databases/%s", projectID, database),
		log:  logging.Discard(),
	}, nil
}

func (c *Client) root() string {
	return c.db + "/documents"
}

// userParent is the parent document of a user's task collection.
func (c *Client) userParent(userID string) string {
	return c.root() + "/" + usersCollection + "/" + userID
}

func (c *Client) taskName(userID, taskID string) string {
	return c.userParent(userID) + "/" + tasksCollection + "/" + taskID
}

func (c *Client) legacyName(taskID string) string {
	return c.root() + "/" + tasksCollection + "/" + taskID
}

// ListTasks returns the user's tasks, newest first. Documents without a
// createdAt field sort by their create time.
func (c *Client) ListTasks(ctx context.Context, userID string) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	// Ordering server side would drop documents missing createdAt.
	var result []service.Task
	err := c.svc.Projects.Databases.Documents.List(c.userParent(userID), tasksCollection).
		PageSize(PageSize).
		Pages(ctx, func(resp *firestore.ListDocumentsResponse) error {
			for _, doc := range resp.Documents {
				result = append(result, recordFromDocument(doc).ToTask())
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	c.log.WithFields(logrus.Fields{"user": userID, "count": len(result)}).Debug("listed tasks")
	return result, nil
}

// CreateTask writes a new task document stamped with the server time.
func (c *Client) CreateTask(ctx context.Context, userID string, task service.NewTask) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	rec := service.RecordFrom(task)
	rec.ID = newDocumentID()
	write := createWrite(c.taskName(userID, rec.ID), rec)

	resp, err := c.svc.Projects.Databases.Documents.Commit(c.db, &firestore.CommitRequest{
		Writes: []*firestore.Write{write},
	}).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}

	rec.CreatedAt = parseTime(resp.CommitTime)
	rec.UpdatedAt = rec.CreatedAt
	return rec.ToTask(), nil
}

// SetCompleted updates the completed flag of an existing task.
func (c *Client) SetCompleted(ctx context.Context, userID, taskID string, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	doc := &firestore.Document{
		Name: c.taskName(userID, taskID),
		Fields: map[string]firestore.Value{
			"completed": boolValue(completed),
		},
	}
	write := &firestore.Write{
		Update:     doc,
		UpdateMask: &firestore.DocumentMask{FieldPaths: []string{"completed"}},
		UpdateTransforms: []*firestore.FieldTransform{
			{FieldPath: "updatedAt", SetToServerValue: serverTime},
		},
		CurrentDocument: &firestore.Precondition{Exists: true},
	}
	_, err := c.svc.Projects.Databases.Documents.Commit(c.db, &firestore.CommitRequest{
		Writes: []*firestore.Write{write},
	}).Context(ctx).Do()
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// DeleteTask deletes a task document.
func (c *Client) DeleteTask(ctx context.Context, userID, taskID string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	_, err := c.svc.Projects.Databases.Documents.Delete(c.taskName(userID, taskID)).Context(ctx).Do()
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// ListLegacyTasks returns the documents of the legacy top-level collection
// tagged with userID.
func (c *Client) ListLegacyTasks(ctx context.Context, userID string) ([]service.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resps, err := c.runQuery(ctx, c.root(), legacyQuery(userID))
	if err != nil {
		return nil, wrapError(err)
	}
	var result []service.Record
	for _, r := range resps {
		if r.Document != nil {
			result = append(result, recordFromDocument(r.Document))
		}
	}
	c.log.WithFields(logrus.Fields{"user": userID, "count": len(result)}).Debug("listed legacy tasks")
	return result, nil
}

// legacyQuery selects the top-level tasks whose userId equals userID.
func legacyQuery(userID string) *firestore.RunQueryRequest {
	return &firestore.RunQueryRequest{
		StructuredQuery: &firestore.StructuredQuery{
			From: []*firestore.CollectionSelector{{CollectionId: tasksCollection}},
			Where: &firestore.Filter{
				FieldFilter: &firestore.FieldFilter{
					Field: &firestore.FieldReference{FieldPath: "userId"},
					Op:    "EQUAL",
					Value: &firestore.Value{StringValue: userID},
				},
			},
		},
	}
}

// runQuery posts q under parent and decodes the streamed array of results.
// The generated RunQuery call expects a single object, so the request is
// sent here through the same authorized client.
func (c *Client) runQuery(ctx context.Context, parent string, q *firestore.RunQueryRequest) ([]*firestore.RunQueryResponse, error) {
	body, err := googleapi.WithoutDataWrapper.JSONBuffer(q)
	if err != nil {
		return nil, err
	}
	urls := googleapi.ResolveRelative(c.svc.BasePath, "v1/{+parent}:runQuery") + "?alt=json&prettyPrint=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urls, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	googleapi.Expand(req.URL, map[string]string{"parent": parent})

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}

	var out []*firestore.RunQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return out, nil
}

// CommitBatch applies the batch in a single commit.
func (c *Client) CommitBatch(ctx context.Context, userID string, b service.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	writes := batchWrites(b, func() string {
		return c.taskName(userID, newDocumentID())
	}, c.legacyName)
	if len(writes) == 0 {
		return nil
	}
	_, err := c.svc.Projects.Databases.Documents.Commit(c.db, &firestore.CommitRequest{
		Writes: writes,
	}).Context(ctx).Do()
	if err != nil {
		return wrapError(err)
	}
	c.log.WithFields(logrus.Fields{"user": userID, "count": len(writes)}).Debug("committed batch")
	return nil
}

// batchWrites builds the commit writes for b. Created documents keep their
// stored timestamps; deletes require the source to exist.
func batchWrites(b service.Batch, newName func() string, legacyName func(string) string) []*firestore.Write {
	writes := make([]*firestore.Write, 0, len(b.Creates)+len(b.LegacyDeletes))
	for _, rec := range b.Creates {
		rec.UserID = ""
		writes = append(writes, &firestore.Write{
			Update:          documentFromRecord(newName(), rec),
			CurrentDocument: &firestore.Precondition{Exists: false, ForceSendFields: []string{"Exists"}},
		})
	}
	for _, id := range b.LegacyDeletes {
		writes = append(writes, &firestore.Write{
			Delete:          legacyName(id),
			CurrentDocument: &firestore.Precondition{Exists: true},
		})
	}
	return writes
}

// createWrite builds the write for a new task: the document must not exist
// and both timestamps are set to the commit time.
func createWrite(name string, rec service.Record) *firestore.Write {
	doc := documentFromRecord(name, rec)
	delete(doc.Fields, "createdAt")
	delete(doc.Fields, "updatedAt")
	return &firestore.Write{
		Update: doc,
		UpdateTransforms: []*firestore.FieldTransform{
			{FieldPath: "createdAt", SetToServerValue: serverTime},
			{FieldPath: "updatedAt", SetToServerValue: serverTime},
		},
		CurrentDocument: &firestore.Precondition{Exists: false, ForceSendFields: []string{"Exists"}},
	}
}

func newDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// wrapError classifies API errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	// Check for timeout
	if errors.Is(err, context.DeadlineExceeded) {
		return service.Wrap(service.KindUnknown, fmt.Errorf("request timed out"))
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusForbidden || strings.Contains(gerr.Message, "PERMISSION_DENIED"):
			return &service.Error{Kind: service.KindPermission, Message: gerr.Message, Err: err}
		case gerr.Code == http.StatusUnauthorized:
			return &service.Error{Kind: service.KindAuth, Code: "session-expired", Message: "token expired or revoked (run: todo login)", Err: err}
		case gerr.Code == http.StatusNotFound:
			return &service.Error{Kind: service.KindNotFound, Message: "not found", Err: err}
		}
	}
	return service.Wrap(service.KindUnknown, err)
}
