// ABOUTME: MCP tool implementations for sessions, schedules, progress, plans and messages.
// ABOUTME: Trainer-only tools fail with a forbidden error for clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/forma/internal/domain"
	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/snapshot"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "login",
		Description: "Sign in with email and password",
	}, s.handleLogin)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "logout",
		Description: "Sign out of the current session",
	}, s.handleLogout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "whoami",
		Description: "Show the signed-in user",
	}, s.handleWhoami)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_records",
		Description: "List every record of a table (trainers only)",
	}, s.handleListRecords)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "schedule_session",
		Description: "Book a training session for a client (trainers only)",
	}, s.handleScheduleSession)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_schedule",
		Description: "List booked sessions visible to the signed-in user",
	}, s.handleListSchedule)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_session",
		Description: "Cancel a booked session (trainers only)",
	}, s.handleDeleteSession)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_progress",
		Description: "Record a body measurement (weight-kg, body-fat-percent, chest-cm, waist-cm)",
	}, s.handleAddProgress)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_progress",
		Description: "List progress entries sorted by date",
	}, s.handleListProgress)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_plan",
		Description: "Create a training or nutrition plan for a client (trainers only)",
	}, s.handleAddPlan)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_plans",
		Description: "List plans visible to the signed-in user",
	}, s.handleListPlans)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_plan",
		Description: "Delete a plan (trainers only)",
	}, s.handleDeletePlan)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "send_message",
		Description: "Send a message to another user",
	}, s.handleSendMessage)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_conversation",
		Description: "Get the messages exchanged with another user, oldest first",
	}, s.handleGetConversation)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "update_profile",
		Description: "Update the signed-in user's profile",
	}, s.handleUpdateProfile)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_snapshot",
		Description: "Export the whole store as json, yaml or markdown (trainers only)",
	}, s.handleExportSnapshot)
}

// Tool input/output types

type loginInput struct {
	Email    string `json:"email" jsonschema:"Account email"`
	Password string `json:"password" jsonschema:"Account password"`
}

type emptyInput struct{}

type sessionOutput struct {
	SignedIn bool        `json:"signed_in"`
	UserID   string      `json:"user_id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Email    string      `json:"email,omitempty"`
	Role     models.Role `json:"role,omitempty"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type listRecordsInput struct {
	Table string `json:"table" jsonschema:"Table name (users, profiles, workouts, nutrition, schedules, progress, messages, plans)"`
}

type listRecordsOutput struct {
	Table   string           `json:"table"`
	Count   int              `json:"count"`
	Records []map[string]any `json:"records"`
}

type scheduleSessionInput struct {
	ClientID string `json:"client_id" jsonschema:"Client user ID"`
	Date     string `json:"date" jsonschema:"Date (YYYY-MM-DD)"`
	Time     string `json:"time" jsonschema:"Start time (HH:MM, 24-hour)"`
	Title    string `json:"title,omitempty" jsonschema:"Optional session title"`
}

type scheduleItemOutput struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	TrainerID   string `json:"trainer_id,omitempty"`
	TrainerName string `json:"trainer_name,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Title       string `json:"title,omitempty"`
}

type listScheduleInput struct {
	Upcoming bool `json:"upcoming,omitempty" jsonschema:"Only sessions from now on"`
	Limit    int  `json:"limit,omitempty" jsonschema:"Max results when upcoming is set (default 20)"`
}

type listScheduleOutput struct {
	Sessions []scheduleItemOutput `json:"sessions"`
}

type idInput struct {
	ID string `json:"id" jsonschema:"Record ID"`
}

type addProgressInput struct {
	UserID string  `json:"user_id,omitempty" jsonschema:"Client user ID (trainers only, defaults to yourself)"`
	Date   string  `json:"date,omitempty" jsonschema:"Date (YYYY-MM-DD), defaults to today"`
	Metric string  `json:"metric" jsonschema:"Metric (weight-kg, body-fat-percent, chest-cm, waist-cm)"`
	Value  float64 `json:"value" jsonschema:"Measured value, zero or more"`
}

type progressOutput struct {
	ID     string  `json:"id"`
	UserID string  `json:"user_id"`
	Date   string  `json:"date"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
}

type listProgressInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Client user ID (trainers only, defaults to yourself)"`
	Metric string `json:"metric,omitempty" jsonschema:"Filter by metric"`
}

type listProgressOutput struct {
	Entries []progressOutput `json:"entries"`
}

type addPlanInput struct {
	ClientID string `json:"client_id" jsonschema:"Client user ID"`
	Type     string `json:"type" jsonschema:"Plan type (training or nutrition)"`
	Title    string `json:"title" jsonschema:"Plan title"`
	Details  string `json:"details,omitempty" jsonschema:"Plan details"`
}

type planOutput struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Details   string `json:"details,omitempty"`
	CreatedAt string `json:"created_at"`
}

type listPlansInput struct {
	ClientID string `json:"client_id,omitempty" jsonschema:"Filter by client (trainers only)"`
}

type listPlansOutput struct {
	Plans []planOutput `json:"plans"`
}

type sendMessageInput struct {
	ToID string `json:"to_id" jsonschema:"Recipient user ID"`
	Text string `json:"text" jsonschema:"Message text"`
}

type messageOutput struct {
	ID     string `json:"id"`
	FromID string `json:"from_id"`
	From   string `json:"from"`
	ToID   string `json:"to_id"`
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

type conversationInput struct {
	WithID string `json:"with_id" jsonschema:"The other user's ID"`
}

type conversationOutput struct {
	Messages []messageOutput `json:"messages"`
}

type updateProfileInput struct {
	Age       *int     `json:"age,omitempty" jsonschema:"Age in years (10-100)"`
	HeightCm  *float64 `json:"height_cm,omitempty" jsonschema:"Height in cm (100-250)"`
	WeightKg  *float64 `json:"weight_kg,omitempty" jsonschema:"Weight in kg (30-300)"`
	Bio       *string  `json:"bio,omitempty" jsonschema:"Short bio, at most 500 characters"`
	AvatarURL *string  `json:"avatar_url,omitempty" jsonschema:"Absolute avatar URL"`
	Goals     *string  `json:"goals,omitempty" jsonschema:"Fitness goals"`
}

type profileOutput struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Age       *int     `json:"age,omitempty"`
	HeightCm  *float64 `json:"height_cm,omitempty"`
	WeightKg  *float64 `json:"weight_kg,omitempty"`
	Bio       string   `json:"bio,omitempty"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Goals     string   `json:"goals,omitempty"`
}

type exportInput struct {
	Format string `json:"format,omitempty" jsonschema:"json (default), yaml or markdown"`
	S3Key  string `json:"s3_key,omitempty" jsonschema:"Also upload to the configured S3 bucket under this key"`
}

type exportOutput struct {
	Format   string `json:"format"`
	Records  int    `json:"records"`
	Content  string `json:"content"`
	Uploaded string `json:"uploaded,omitempty"`
}

// Tool handlers

func (s *Server) handleLogin(ctx context.Context, req *mcp.CallToolRequest, input loginInput) (*mcp.CallToolResult, sessionOutput, error) {
	if _, err := s.app.Auth.Login(ctx, input.Email, input.Password); err != nil {
		return nil, sessionOutput{}, err
	}
	return nil, toSessionOutput(s.app.Auth.Session()), nil
}

func (s *Server) handleLogout(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.app.Auth.Logout(); err != nil {
		return nil, simpleOutput{}, err
	}
	return nil, simpleOutput{Message: "Signed out"}, nil
}

func (s *Server) handleWhoami(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, sessionOutput, error) {
	return nil, toSessionOutput(s.app.Auth.Session()), nil
}

func (s *Server) handleListRecords(ctx context.Context, req *mcp.CallToolRequest, input listRecordsInput) (*mcp.CallToolResult, listRecordsOutput, error) {
	if _, err := s.app.Auth.Authorize(models.RoleTrainer); err != nil {
		return nil, listRecordsOutput{}, err
	}
	if !models.IsValidTable(input.Table) {
		return nil, listRecordsOutput{}, fmt.Errorf("unknown table: %s", input.Table)
	}

	recs, err := s.app.Store.GetAll(ctx, models.Table(input.Table))
	if err != nil {
		return nil, listRecordsOutput{}, err
	}

	out := listRecordsOutput{Table: input.Table, Records: make([]map[string]any, 0, len(recs))}
	for _, rec := range recs {
		m, err := toMap(rec)
		if err != nil {
			return nil, listRecordsOutput{}, err
		}
		delete(m, "passwordHash")
		out.Records = append(out.Records, m)
	}
	out.Count = len(out.Records)
	return nil, out, nil
}

func (s *Server) handleScheduleSession(ctx context.Context, req *mcp.CallToolRequest, input scheduleSessionInput) (*mcp.CallToolResult, scheduleItemOutput, error) {
	sess, err := s.app.Auth.Authorize(models.RoleTrainer)
	if err != nil {
		return nil, scheduleItemOutput{}, err
	}

	client, err := s.app.Services.Directory.Get(ctx, input.ClientID)
	if err != nil {
		return nil, scheduleItemOutput{}, err
	}
	if client == nil {
		return nil, scheduleItemOutput{}, fmt.Errorf("client %s: %w", input.ClientID, domain.ErrNotFound)
	}

	item, err := s.app.Services.Schedule.Add(ctx, domain.ScheduleInput{
		ClientID:  input.ClientID,
		TrainerID: sess.UserID,
		Date:      input.Date,
		Time:      input.Time,
		Title:     input.Title,
	})
	if err != nil {
		return nil, scheduleItemOutput{}, err
	}
	return nil, s.toScheduleOutput(ctx, item), nil
}

func (s *Server) handleListSchedule(ctx context.Context, req *mcp.CallToolRequest, input listScheduleInput) (*mcp.CallToolResult, listScheduleOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, listScheduleOutput{}, err
	}

	var items []*models.ScheduleItem
	if input.Upcoming {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		items, err = s.app.Services.Schedule.Upcoming(ctx, sess, s.now(), limit)
	} else {
		items, err = s.app.Services.Schedule.ForUser(ctx, sess)
	}
	if err != nil {
		return nil, listScheduleOutput{}, err
	}

	out := listScheduleOutput{Sessions: make([]scheduleItemOutput, 0, len(items))}
	for _, it := range items {
		out.Sessions = append(out.Sessions, s.toScheduleOutput(ctx, it))
	}
	return nil, out, nil
}

func (s *Server) handleDeleteSession(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	if _, err := s.app.Auth.Authorize(models.RoleTrainer); err != nil {
		return nil, simpleOutput{}, err
	}
	if err := s.app.Services.Schedule.Delete(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, err
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted session %s", input.ID)}, nil
}

// subject resolves the user a progress call acts on. Clients may only act
// on themselves.
func subject(sess *models.Session, userID string) (string, error) {
	if userID == "" || userID == sess.UserID {
		return sess.UserID, nil
	}
	if !sess.IsTrainer() {
		return "", fmt.Errorf("clients can only access their own progress")
	}
	return userID, nil
}

func (s *Server) handleAddProgress(ctx context.Context, req *mcp.CallToolRequest, input addProgressInput) (*mcp.CallToolResult, progressOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, progressOutput{}, err
	}
	userID, err := subject(sess, input.UserID)
	if err != nil {
		return nil, progressOutput{}, err
	}

	date := input.Date
	if date == "" {
		date = s.now().Format(models.DateLayout)
	}
	entry, err := s.app.Services.Progress.Add(ctx, userID, date, input.Metric, input.Value)
	if err != nil {
		return nil, progressOutput{}, err
	}
	return nil, toProgressOutput(entry), nil
}

func (s *Server) handleListProgress(ctx context.Context, req *mcp.CallToolRequest, input listProgressInput) (*mcp.CallToolResult, listProgressOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, listProgressOutput{}, err
	}
	userID, err := subject(sess, input.UserID)
	if err != nil {
		return nil, listProgressOutput{}, err
	}

	var metric models.ProgressMetric
	if input.Metric != "" {
		m, ok := models.ParseProgressMetric(input.Metric)
		if !ok {
			return nil, listProgressOutput{}, fmt.Errorf("unknown metric: %s", input.Metric)
		}
		metric = m
	}

	entries, err := s.app.Services.Progress.Series(ctx, userID, metric)
	if err != nil {
		return nil, listProgressOutput{}, err
	}
	out := listProgressOutput{Entries: make([]progressOutput, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toProgressOutput(e))
	}
	return nil, out, nil
}

func (s *Server) handleAddPlan(ctx context.Context, req *mcp.CallToolRequest, input addPlanInput) (*mcp.CallToolResult, planOutput, error) {
	sess, err := s.app.Auth.Authorize(models.RoleTrainer)
	if err != nil {
		return nil, planOutput{}, err
	}
	p, err := s.app.Services.Plans.Add(ctx, domain.PlanInput{
		ClientID:  input.ClientID,
		TrainerID: sess.UserID,
		Type:      strings.ToLower(input.Type),
		Title:     input.Title,
		Details:   input.Details,
	})
	if err != nil {
		return nil, planOutput{}, err
	}
	return nil, toPlanOutput(p), nil
}

func (s *Server) handleListPlans(ctx context.Context, req *mcp.CallToolRequest, input listPlansInput) (*mcp.CallToolResult, listPlansOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, listPlansOutput{}, err
	}

	var plans []*models.Plan
	if input.ClientID != "" && sess.IsTrainer() {
		plans, err = s.app.Services.Plans.ForClient(ctx, input.ClientID)
	} else {
		plans, err = s.app.Services.Plans.ForUser(ctx, sess)
	}
	if err != nil {
		return nil, listPlansOutput{}, err
	}

	out := listPlansOutput{Plans: make([]planOutput, 0, len(plans))}
	for _, p := range plans {
		out.Plans = append(out.Plans, toPlanOutput(p))
	}
	return nil, out, nil
}

func (s *Server) handleDeletePlan(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	if _, err := s.app.Auth.Authorize(models.RoleTrainer); err != nil {
		return nil, simpleOutput{}, err
	}
	if err := s.app.Services.Plans.Delete(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, err
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted plan %s", input.ID)}, nil
}

func (s *Server) handleSendMessage(ctx context.Context, req *mcp.CallToolRequest, input sendMessageInput) (*mcp.CallToolResult, messageOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, messageOutput{}, err
	}
	m, err := s.app.Services.Messages.Send(ctx, sess.UserID, input.ToID, input.Text)
	if err != nil {
		return nil, messageOutput{}, err
	}
	return nil, s.toMessageOutput(ctx, m), nil
}

func (s *Server) handleGetConversation(ctx context.Context, req *mcp.CallToolRequest, input conversationInput) (*mcp.CallToolResult, conversationOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, conversationOutput{}, err
	}
	msgs, err := s.app.Services.Messages.Conversation(ctx, sess.UserID, input.WithID)
	if err != nil {
		return nil, conversationOutput{}, err
	}
	out := conversationOutput{Messages: make([]messageOutput, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, s.toMessageOutput(ctx, m))
	}
	return nil, out, nil
}

func (s *Server) handleUpdateProfile(ctx context.Context, req *mcp.CallToolRequest, input updateProfileInput) (*mcp.CallToolResult, profileOutput, error) {
	sess, err := s.app.Auth.Authorize()
	if err != nil {
		return nil, profileOutput{}, err
	}
	p, err := s.app.Services.Profiles.Update(ctx, sess.UserID, domain.ProfileUpdate{
		Age:       input.Age,
		HeightCm:  input.HeightCm,
		WeightKg:  input.WeightKg,
		Bio:       input.Bio,
		AvatarURL: input.AvatarURL,
		Goals:     input.Goals,
	})
	if err != nil {
		return nil, profileOutput{}, err
	}
	return nil, profileOutput{
		ID:        p.ID,
		UserID:    p.UserID,
		Age:       p.Age,
		HeightCm:  p.HeightCm,
		WeightKg:  p.WeightKg,
		Bio:       p.Bio,
		AvatarURL: p.AvatarURL,
		Goals:     p.Goals,
	}, nil
}

func (s *Server) handleExportSnapshot(ctx context.Context, req *mcp.CallToolRequest, input exportInput) (*mcp.CallToolResult, exportOutput, error) {
	if _, err := s.app.Auth.Authorize(models.RoleTrainer); err != nil {
		return nil, exportOutput{}, err
	}

	format := input.Format
	if format == "" {
		format = "json"
	}
	snap, err := snapshot.Export(ctx, s.app.Store)
	if err != nil {
		return nil, exportOutput{}, err
	}

	var data []byte
	switch format {
	case "json":
		data, err = snapshot.EncodeJSON(snap)
	case "yaml":
		data, err = snapshot.EncodeYAML(snap)
	case "markdown":
		data = []byte(snapshot.RenderMarkdown(snap))
	default:
		return nil, exportOutput{}, fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
	}
	if err != nil {
		return nil, exportOutput{}, err
	}

	out := exportOutput{Format: format, Records: snap.Count(), Content: string(data)}
	if input.S3Key != "" {
		sink, err := snapshot.NewS3Sink(ctx, s.app.Config.S3, s.app.Logger.Named("s3"))
		if err != nil {
			return nil, exportOutput{}, err
		}
		if out.Uploaded, err = sink.Upload(ctx, input.S3Key, data); err != nil {
			return nil, exportOutput{}, err
		}
	}
	return nil, out, nil
}

// Conversion helpers

func toSessionOutput(sess *models.Session) sessionOutput {
	if sess == nil {
		return sessionOutput{}
	}
	return sessionOutput{SignedIn: true, UserID: sess.UserID, Name: sess.Name, Email: sess.Email, Role: sess.Role}
}

func (s *Server) toScheduleOutput(ctx context.Context, it *models.ScheduleItem) scheduleItemOutput {
	out := scheduleItemOutput{
		ID:         it.ID,
		ClientID:   it.ClientID,
		ClientName: s.app.Services.Directory.Name(ctx, it.ClientID),
		TrainerID:  it.TrainerID,
		Date:       it.Date,
		Time:       it.Time,
		Title:      it.Title,
	}
	if it.TrainerID != "" {
		out.TrainerName = s.app.Services.Directory.Name(ctx, it.TrainerID)
	}
	return out
}

func toProgressOutput(p *models.ProgressEntry) progressOutput {
	return progressOutput{
		ID:     p.ID,
		UserID: p.UserID,
		Date:   p.Date,
		Metric: string(p.Metric),
		Value:  p.Value,
		Unit:   p.Unit(),
	}
}

func toPlanOutput(p *models.Plan) planOutput {
	return planOutput{
		ID:        p.ID,
		ClientID:  p.ClientID,
		Type:      string(p.Type),
		Title:     p.Title,
		Details:   p.Details,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) toMessageOutput(ctx context.Context, m *models.Message) messageOutput {
	return messageOutput{
		ID:     m.ID,
		FromID: m.FromID,
		From:   s.app.Services.Directory.Name(ctx, m.FromID),
		ToID:   m.ToID,
		Text:   m.Text,
		SentAt: m.SentAt.Format(time.RFC3339),
	}
}

func toMap(rec models.Record) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
