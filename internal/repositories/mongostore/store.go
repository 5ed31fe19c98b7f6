// Package mongostore implements the Store over MongoDB. It has no
// multi-document transaction, so accepting an application takes the
// two-phase path in the services layer.
package mongostore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

const (
	tasksCollection        = "tasks"
	applicationsCollection = "applications"
	profilesCollection     = "profiles"
)

type Store struct {
	client       *mongo.Client
	tasks        *mongo.Collection
	applications *mongo.Collection
	profiles     *mongo.Collection
}

// Connect dials uri, verifies the server answers and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, apperrors.Unavailable(err)
	}

	s := New(client.Database(database))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func New(db *mongo.Database) *Store {
	return &Store{
		client:       db.Client(),
		tasks:        db.Collection(tasksCollection),
		applications: db.Collection(applicationsCollection),
		profiles:     db.Collection(profilesCollection),
	}
}

// EnsureIndexes creates the query indexes and the partial unique index that
// allows one non-withdrawn application per (task, applicant). The $in
// partial filter needs MongoDB 6.0 or newer.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "creatorUid", Value: 1}}},
		{Keys: bson.D{{Key: "assigneeUid", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	if err != nil {
		return apperrors.Unavailable(err)
	}

	_, err = s.applications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "taskId", Value: 1}, {Key: "applicantUid", Value: 1}},
			Options: options.Index().
				SetName("applications_active_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": bson.A{
					constants.ApplicationPending,
					constants.ApplicationAccepted,
					constants.ApplicationRejected,
				}}}),
		},
		{Keys: bson.D{{Key: "applicantUid", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return apperrors.Unavailable(err)
	}

	_, err = s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tasker", Value: 1}, {Key: "skills", Value: 1}},
	})
	return apperrors.Unavailable(err)
}

func (s *Store) Tasks() repository.TaskStore               { return taskStore{s.tasks} }
func (s *Store) Applications() repository.ApplicationStore { return applicationStore{s.applications} }
func (s *Store) Profiles() repository.ProfileStore         { return profileStore{s.profiles} }

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}

func findOptions(limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// and folds conditions into a single filter document.
func and(conds []bson.M) bson.M {
	switch len(conds) {
	case 0:
		return bson.M{}
	case 1:
		return conds[0]
	}
	arr := make(bson.A, len(conds))
	for i, c := range conds {
		arr[i] = c
	}
	return bson.M{"$and": arr}
}

func taskFilter(f repository.TaskFilter) bson.M {
	var conds []bson.M
	if f.CreatorUID != "" {
		conds = append(conds, bson.M{"creatorUid": f.CreatorUID})
	}
	if f.AssigneeUID != "" {
		conds = append(conds, bson.M{"assigneeUid": f.AssigneeUID})
	}
	if f.ParticipantUID != "" {
		conds = append(conds, bson.M{"$or": bson.A{
			bson.M{"creatorUid": f.ParticipantUID},
			bson.M{"assigneeUid": f.ParticipantUID},
		}})
	}
	if f.ExcludeCreator != "" {
		conds = append(conds, bson.M{"creatorUid": bson.M{"$ne": f.ExcludeCreator}})
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, bson.M{"status": bson.M{"$in": f.Statuses}})
	}
	if f.Type != "" {
		conds = append(conds, bson.M{"type": f.Type})
	}
	if f.City != "" {
		conds = append(conds, bson.M{"location.city": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(f.City) + "$",
			Options: "i",
		}})
	}
	if f.MinBudget != nil {
		conds = append(conds, bson.M{"budget.amount": bson.M{"$gte": *f.MinBudget}})
	}
	if f.MaxBudget != nil {
		conds = append(conds, bson.M{"budget.amount": bson.M{"$lte": *f.MaxBudget}})
	}
	if len(f.SkillsAny) > 0 {
		conds = append(conds, bson.M{"skillsRequired": bson.M{"$in": f.SkillsAny}})
	}
	if f.ExpiresBefore != nil {
		conds = append(conds, bson.M{"expiresAt": bson.M{"$lt": *f.ExpiresBefore}})
	}
	return and(conds)
}

func taskCondition(id string, c repository.TaskCondition) bson.M {
	conds := []bson.M{{"_id": id}}
	if len(c.Statuses) > 0 {
		conds = append(conds, bson.M{"status": bson.M{"$in": c.Statuses}})
	}
	if c.AssigneeUID != "" {
		conds = append(conds, bson.M{"assigneeUid": c.AssigneeUID})
	}
	if c.ExpiresBefore != nil {
		conds = append(conds, bson.M{"expiresAt": bson.M{"$lt": *c.ExpiresBefore}})
	}
	return and(conds)
}

func taskSet(upd repository.TaskUpdate) bson.M {
	set := bson.M{"updatedAt": upd.UpdatedAt}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.AssigneeUID != nil {
		set["assigneeUid"] = *upd.AssigneeUID
	}
	if upd.Completion != nil {
		set["completion"] = *upd.Completion
	}
	if d := upd.Details; d != nil {
		set["type"] = d.Type
		set["title"] = d.Title
		set["description"] = d.Description
		set["budget"] = d.Budget
		set["skillsRequired"] = d.SkillsRequired
		set["location"] = d.Location
		set["priority"] = d.Priority
		set["urgency"] = d.Urgency
		set["images"] = d.Images
	}
	return set
}

type taskStore struct{ c *mongo.Collection }

func (r taskStore) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = constants.StatusOpen
	}
	task.Version = 1

	_, err := r.c.InsertOne(ctx, task)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.Conflict("task %s already exists", task.ID)
	}
	return apperrors.Unavailable(err)
}

func (r taskStore) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &task, nil
}

func (r taskStore) List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	cur, err := r.c.Find(ctx, taskFilter(filter), findOptions(filter.Limit, filter.Offset))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	var tasks []model.Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return tasks, nil
}

func (r taskStore) Count(ctx context.Context, filter repository.TaskFilter) (int64, error) {
	n, err := r.c.CountDocuments(ctx, taskFilter(filter))
	return n, apperrors.Unavailable(err)
}

func (r taskStore) UpdateIf(ctx context.Context, id string, cond repository.TaskCondition, upd repository.TaskUpdate) (*model.Task, error) {
	var task model.Task
	err := r.c.FindOneAndUpdate(ctx,
		taskCondition(id, cond),
		bson.M{"$set": taskSet(upd), "$inc": bson.M{"version": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&task)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missOrConflict(ctx, r.c, id, apperrors.ErrTaskNotFound)
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &task, nil
}

func (r taskStore) IncrementViewCount(ctx context.Context, id string) error {
	return increment(ctx, r.c, id, "viewCount", apperrors.ErrTaskNotFound)
}

func (r taskStore) IncrementApplicationCount(ctx context.Context, id string) error {
	return increment(ctx, r.c, id, "applicationCount", apperrors.ErrTaskNotFound)
}

type applicationStore struct{ c *mongo.Collection }

func (r applicationStore) CreateApplication(ctx context.Context, app *model.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Messages == nil {
		app.Messages = []model.ApplicationMessage{}
	}

	_, err := r.c.InsertOne(ctx, app)
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.ErrDuplicateApplication
	}
	return apperrors.Unavailable(err)
}

func (r applicationStore) FindByID(ctx context.Context, id string) (*model.Application, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r applicationStore) FindActive(ctx context.Context, taskID, applicantUID string) (*model.Application, error) {
	return r.findOne(ctx, bson.M{
		"taskId":       taskID,
		"applicantUid": applicantUID,
		"status":       bson.M{"$ne": constants.ApplicationWithdrawn},
	})
}

func (r applicationStore) findOne(ctx context.Context, filter bson.M) (*model.Application, error) {
	var app model.Application
	err := r.c.FindOne(ctx, filter).Decode(&app)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &app, nil
}

func applicationFilter(f repository.ApplicationFilter) bson.M {
	m := bson.M{}
	if f.TaskID != "" {
		m["taskId"] = f.TaskID
	}
	if f.ApplicantUID != "" {
		m["applicantUid"] = f.ApplicantUID
	}
	if len(f.Statuses) > 0 {
		m["status"] = bson.M{"$in": f.Statuses}
	}
	return m
}

func (r applicationStore) List(ctx context.Context, filter repository.ApplicationFilter) ([]model.Application, error) {
	cur, err := r.c.Find(ctx, applicationFilter(filter), findOptions(filter.Limit, filter.Offset))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	var apps []model.Application
	if err := cur.All(ctx, &apps); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return apps, nil
}

func (r applicationStore) Count(ctx context.Context, filter repository.ApplicationFilter) (int64, error) {
	n, err := r.c.CountDocuments(ctx, applicationFilter(filter))
	return n, apperrors.Unavailable(err)
}

func (r applicationStore) UpdateStatusIf(ctx context.Context, id string, from []constants.ApplicationStatus, to constants.ApplicationStatus, at time.Time) (*model.Application, error) {
	var app model.Application
	err := r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": to, "updatedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&app)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, missOrConflict(ctx, r.c, id, apperrors.ErrApplicationNotFound)
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, apperrors.ErrDuplicateApplication
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &app, nil
}

func (r applicationStore) RejectPending(ctx context.Context, taskID, exceptID string, at time.Time) (int64, error) {
	res, err := r.c.UpdateMany(ctx,
		bson.M{"taskId": taskID, "_id": bson.M{"$ne": exceptID}, "status": constants.ApplicationPending},
		bson.M{"$set": bson.M{"status": constants.ApplicationRejected, "updatedAt": at}},
	)
	if err != nil {
		return 0, apperrors.Unavailable(err)
	}
	return res.ModifiedCount, nil
}

func (r applicationStore) AppendMessage(ctx context.Context, id string, msg model.ApplicationMessage) (*model.Application, error) {
	var app model.Application
	err := r.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updatedAt": msg.CreatedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&app)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &app, nil
}

type profileStore struct{ c *mongo.Collection }

func (r profileStore) Save(ctx context.Context, profile *model.Profile) error {
	_, err := r.c.ReplaceOne(ctx, bson.M{"_id": profile.UID}, profile, options.Replace().SetUpsert(true))
	return apperrors.Unavailable(err)
}

func (r profileStore) FindByUID(ctx context.Context, uid string) (*model.Profile, error) {
	var profile model.Profile
	err := r.c.FindOne(ctx, bson.M{"_id": uid}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.ErrProfileNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &profile, nil
}

func (r profileStore) List(ctx context.Context, filter repository.ProfileFilter) ([]model.Profile, error) {
	m := bson.M{}
	if filter.TaskersOnly {
		m["tasker"] = true
	}
	if filter.ExcludeUID != "" {
		m["_id"] = bson.M{"$ne": filter.ExcludeUID}
	}
	if len(filter.SkillsAny) > 0 {
		m["skills"] = bson.M{"$in": filter.SkillsAny}
	}

	cur, err := r.c.Find(ctx, m, findOptions(filter.Limit, 0))
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	var profiles []model.Profile
	if err := cur.All(ctx, &profiles); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return profiles, nil
}

func (r profileStore) IncrementCounter(ctx context.Context, uid string, counter model.ProfileCounter) error {
	switch counter {
	case model.CounterTotalTasks:
		return increment(ctx, r.c, uid, "totalTasks", apperrors.ErrProfileNotFound)
	case model.CounterCompletedTasks:
		return increment(ctx, r.c, uid, "completedTasks", apperrors.ErrProfileNotFound)
	}
	return apperrors.Validation("unknown profile counter %q", counter)
}

func increment(ctx context.Context, c *mongo.Collection, id, field string, notFound error) error {
	res, err := c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

// missOrConflict tells an unknown id apart from a failed precondition after
// a conditional update matched nothing.
func missOrConflict(ctx context.Context, c *mongo.Collection, id string, notFound error) error {
	n, err := c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if n == 0 {
		return notFound
	}
	return apperrors.ErrOptimisticLock
}

var _ repository.Store = (*Store)(nil)
