// Package mongostore implements store.Store on MongoDB collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tasktrail/internal/domain"
	"tasktrail/internal/store"
)

const (
	ProjectsCollection = "projects"
	TasksCollection    = "tasks"
	ActivityCollection = "activitylogs"
	UsersCollection    = "users"
)

// Store wraps one database. Close disconnects the client only when Open created it.
type Store struct {
	projects *mongo.Collection
	tasks    *mongo.Collection
	activity *mongo.Collection
	users    *mongo.Collection
	client   *mongo.Client
}

var _ store.Store = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{
		projects: db.Collection(ProjectsCollection),
		tasks:    db.Collection(TasksCollection),
		activity: db.Collection(ActivityCollection),
		users:    db.Collection(UsersCollection),
	}
}

// Open connects to uri, pings the server and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := New(client.Database(database))
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique email index and the lookup indexes used by listings.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	if _, err := s.projects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "assignedUsers", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create projects index: %w", err)
	}
	if _, err := s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "assignedTo", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create tasks index: %w", err)
	}
	if _, err := s.activity.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create activity index: %w", err)
	}
	return nil
}

func writeErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrConflict
	}
	return err
}

func readErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := s.projects.InsertOne(ctx, toProjectDoc(p))
	return writeErr(err)
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var doc projectDoc
	if err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Project{}, readErr(err)
	}
	return doc.toDomain(), nil
}

// ProjectQuery builds the match document for a project filter.
func ProjectQuery(f domain.ProjectFilter) bson.M {
	q := bson.M{}
	if f.Member != "" {
		q["assignedUsers"] = f.Member
	}
	return q
}

func (s *Store) ListProjects(ctx context.Context, f domain.ProjectFilter) ([]domain.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.projects.Find(ctx, ProjectQuery(f), opts)
	if err != nil {
		return nil, err
	}
	var docs []projectDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.toDomain())
	}
	return res, nil
}

func (s *Store) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := s.projects.ReplaceOne(ctx, bson.M{"_id": p.ID}, toProjectDoc(p))
	if err != nil {
		return writeErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) (domain.Project, error) {
	var doc projectDoc
	if err := s.projects.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Project{}, readErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) AddProjectMembers(ctx context.Context, id string, userIDs []string, at time.Time) (domain.Project, error) {
	if userIDs == nil {
		userIDs = []string{}
	}
	update := bson.M{
		"$addToSet": bson.M{"assignedUsers": bson.M{"$each": userIDs}},
		"$max":      bson.M{"updatedAt": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc projectDoc
	if err := s.projects.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return domain.Project{}, readErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) CountProjectsByStatus(ctx context.Context, f domain.ProjectFilter) (map[string]int, error) {
	return s.countBy(ctx, s.projects, ProjectQuery(f), "status")
}

func (s *Store) countBy(ctx context.Context, coll *mongo.Collection, match bson.M, field string) (map[string]int, error) {
	cur, err := coll.Aggregate(ctx, GroupPipeline(match, field))
	if err != nil {
		return nil, err
	}
	var rows []groupRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Key] = r.Count
	}
	return counts, nil
}

// GroupPipeline counts documents matching match, grouped by field.
func GroupPipeline(match bson.M, field string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

func (s *Store) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := s.tasks.InsertOne(ctx, toTaskDoc(t))
	return writeErr(err)
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var doc taskDoc
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Task{}, readErr(err)
	}
	return doc.toDomain(), nil
}

// TaskQuery builds the match document for a task filter. Search is a
// literal, case-insensitive substring over title and description.
func TaskQuery(f domain.TaskFilter) bson.M {
	q := bson.M{}
	if f.AssignedTo != "" {
		q["assignedTo"] = f.AssignedTo
	}
	if f.Status != "" {
		q["status"] = string(f.Status)
	}
	if f.Priority != "" {
		q["priority"] = string(f.Priority)
	}
	if f.DueBefore != nil {
		q["dueDate"] = bson.M{"$lte": *f.DueBefore}
	}
	if f.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
		}
	}
	return q
}

// TaskSort orders by the requested field and then by _id in the same direction.
func TaskSort(s domain.Sort) bson.D {
	field := s.Field
	if field == "" {
		field = "createdAt"
	}
	order := 1
	if s.Order == domain.Descending {
		order = -1
	}
	return bson.D{{Key: field, Value: order}, {Key: "_id", Value: order}}
}

func (s *Store) ListTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	cur, err := s.tasks.Find(ctx, TaskQuery(f), options.Find().SetSort(TaskSort(f.Sort)))
	if err != nil {
		return nil, err
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.toDomain())
	}
	return res, nil
}

func (s *Store) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := s.tasks.ReplaceOne(ctx, bson.M{"_id": t.ID}, toTaskDoc(t))
	if err != nil {
		return writeErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) (domain.Task, error) {
	var doc taskDoc
	if err := s.tasks.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Task{}, readErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) SetTaskAssignee(ctx context.Context, id, userID string, at time.Time) (domain.Task, error) {
	update := bson.M{
		"$set": bson.M{"assignedTo": userID},
		"$max": bson.M{"updatedAt": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc taskDoc
	if err := s.tasks.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return domain.Task{}, readErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) CountTasksBy(ctx context.Context, f domain.TaskFilter, field string) (map[string]int, error) {
	if field != "priority" {
		field = "status"
	}
	return s.countBy(ctx, s.tasks, TaskQuery(f), field)
}

func (s *Store) AppendActivity(ctx context.Context, e domain.ActivityLogEntry) error {
	_, err := s.activity.InsertOne(ctx, toActivityDoc(e))
	return writeErr(err)
}

// ActivityQuery builds the match document for an activity filter.
func ActivityQuery(f domain.ActivityFilter) bson.M {
	q := bson.M{}
	if f.User != "" {
		q["user"] = f.User
	}
	return q
}

func (s *Store) ListActivity(ctx context.Context, f domain.ActivityFilter) ([]domain.ActivityLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.activity.Find(ctx, ActivityQuery(f), opts)
	if err != nil {
		return nil, err
	}
	var docs []activityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]domain.ActivityLogEntry, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.toDomain())
	}
	return res, nil
}

func (s *Store) InsertUser(ctx context.Context, u domain.User) error {
	_, err := s.users.InsertOne(ctx, toUserDoc(u))
	return writeErr(err)
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.User{}, readErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": domain.NormalizeEmail(email)}).Decode(&doc)
	if err != nil {
		return domain.User{}, readErr(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.findUsers(ctx, bson.M{})
}

func (s *Store) GetUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) findUsers(ctx context.Context, q bson.M) ([]domain.User, error) {
	cur, err := s.users.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		res = append(res, d.toDomain())
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}
