package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/inkmill/docflow/internal/docflow/entity"
	"github.com/inkmill/docflow/internal/docflow/repository"
	"github.com/inkmill/docflow/internal/docflow/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testFields = json.RawMessage(`[
	{"id": "name", "type": "text", "x": 100, "y": 50, "width": 200, "height": 30, "value": "seeded"},
	{"id": "sig1", "type": "signature", "x": 100, "y": 400, "width": 150, "height": 60, "reviewerEmail": "reviewer@x.com"}
]`)

func setupWorkflowTest(t *testing.T) (*DocumentService, *HistoryService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewDocumentService(db, repos, zap.NewNop())
	hist := NewHistoryService(repos)

	testutil.SeedTestUser(t, db, "creator-001", "Creator", "creator@x.com")
	testutil.SeedTestUser(t, db, "editor-001", "Editor", "e@x.com")
	testutil.SeedTestUser(t, db, "reviewer-001", "Reviewer", "reviewer@x.com")
	testutil.SeedTestTemplate(t, db, "tpl-001", "合同模板", "creator-001", testFields)

	return svc, hist, db
}

func countLogs(t *testing.T, db *gorm.DB, documentID string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&entity.TaskLog{}).Where("document_id = ?", documentID).Count(&count).Error; err != nil {
		t.Fatalf("count task logs: %v", err)
	}
	return count
}

func editorRows(t *testing.T, db *gorm.DB, documentID, role string) []entity.DocumentRole {
	t.Helper()
	var rows []entity.DocumentRole
	if err := db.Preload("User").
		Where("document_id = ? AND task_role = ?", documentID, role).
		Find(&rows).Error; err != nil {
		t.Fatalf("load roles: %v", err)
	}
	return rows
}

func TestCreateDocumentWithoutEditor(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", Title: "合同A"}, "creator-001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Status != entity.DocStatusDraft {
		t.Errorf("status = %s, want DRAFT", doc.Status)
	}
	if len(doc.Roles) != 1 || doc.Roles[0].TaskRole != entity.RoleCreator || doc.Roles[0].UserID != "creator-001" {
		t.Errorf("roles = %+v, want single CREATOR", doc.Roles)
	}
	if n := countLogs(t, db, doc.ID); n != 1 {
		t.Errorf("task logs = %d, want 1", n)
	}

	// 坐标字段从模板深拷贝且值清空
	fields, ok := doc.Data["coordinateFields"].([]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("coordinateFields = %v", doc.Data["coordinateFields"])
	}
	first := fields[0].(map[string]interface{})
	if first["value"] != "" {
		t.Errorf("field value = %v, want cleared", first["value"])
	}
}

func TestCreateDocumentWithEditor(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Status != entity.DocStatusEditing {
		t.Errorf("status = %s, want EDITING", doc.Status)
	}
	if len(doc.Roles) != 2 {
		t.Errorf("roles = %d, want CREATOR + EDITOR", len(doc.Roles))
	}
	if n := countLogs(t, db, doc.ID); n != 2 {
		t.Errorf("task logs = %d, want 2", n)
	}
}

func TestCreateDocumentTemplateMissing(t *testing.T) {
	svc, _, _ := setupWorkflowTest(t)
	_, err := svc.Create(context.Background(), CreateDocumentReq{TemplateID: "nope"}, "creator-001")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEndToEndApprovalFlow(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001"}, "creator-001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Status != entity.DocStatusDraft || countLogs(t, db, doc.ID) != 1 {
		t.Fatalf("after create: status=%s logs=%d", doc.Status, countLogs(t, db, doc.ID))
	}

	doc, err = svc.AssignEditor(ctx, doc.ID, "e@x.com", "creator-001")
	if err != nil {
		t.Fatalf("AssignEditor: %v", err)
	}
	if doc.Status != entity.DocStatusEditing || countLogs(t, db, doc.ID) != 2 {
		t.Fatalf("after assignEditor: status=%s logs=%d", doc.Status, countLogs(t, db, doc.ID))
	}

	newData := entity.JSONB{
		"title":            "合同A",
		"coordinateFields": json.RawMessage(testFields),
		"coordinateData":   map[string]interface{}{"name": "Alice"},
		"signatures":       map[string]interface{}{},
	}
	doc, err = svc.UpdateData(ctx, doc.ID, newData, "editor-001")
	if err != nil {
		t.Fatalf("UpdateData: %v", err)
	}
	if doc.Status != entity.DocStatusEditing || countLogs(t, db, doc.ID) != 3 {
		t.Fatalf("after updateData: status=%s logs=%d", doc.Status, countLogs(t, db, doc.ID))
	}
	if doc.DataRevision != 1 {
		t.Errorf("data revision = %d, want 1", doc.DataRevision)
	}

	doc, err = svc.SubmitForReview(ctx, doc.ID, "editor-001")
	if err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	if doc.Status != entity.DocStatusReadyForReview || countLogs(t, db, doc.ID) != 4 {
		t.Fatalf("after submit: status=%s logs=%d", doc.Status, countLogs(t, db, doc.ID))
	}

	doc, err = svc.AssignReviewer(ctx, doc.ID, "reviewer@x.com", "creator-001")
	if err != nil {
		t.Fatalf("AssignReviewer: %v", err)
	}
	if doc.Status != entity.DocStatusReadyForReview || countLogs(t, db, doc.ID) != 5 {
		t.Fatalf("after assignReviewer: status=%s logs=%d", doc.Status, countLogs(t, db, doc.ID))
	}
	if !svc.CanReview(ctx, doc.ID, "reviewer-001") {
		t.Error("reviewer should be able to review now")
	}

	doc, err = svc.Approve(ctx, doc.ID, "reviewer-001", "aGVsbG8=")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if doc.Status != entity.DocStatusCompleted || countLogs(t, db, doc.ID) != 6 {
		t.Fatalf("after approve: status=%s logs=%d", doc.Status, countLogs(t, db, doc.ID))
	}
	sigs, _ := doc.Data["signatures"].(map[string]interface{})
	if sigs == nil || sigs["reviewer@x.com"] != "aGVsbG8=" {
		t.Errorf("signatures = %v, want reviewer@x.com set", doc.Data["signatures"])
	}
}

func TestAssignEditorReplacesExisting(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.AssignEditor(ctx, doc.ID, "second@x.com", "creator-001"); err != nil {
		t.Fatalf("AssignEditor: %v", err)
	}

	rows := editorRows(t, db, doc.ID, entity.RoleEditor)
	if len(rows) != 1 {
		t.Fatalf("editor rows = %d, want exactly 1", len(rows))
	}
	if rows[0].User == nil || rows[0].User.Email != "second@x.com" {
		t.Errorf("editor bound to %+v, want second@x.com", rows[0].User)
	}
}

func TestAssignEditorForbidden(t *testing.T) {
	svc, _, _ := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")

	// 编辑人不是创建者，不能改派编辑人
	if _, err := svc.AssignEditor(ctx, doc.ID, "other@x.com", "editor-001"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	// 局外人同样被拒
	if _, err := svc.AssignEditor(ctx, doc.ID, "other@x.com", "reviewer-001"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestAssignEditorReopensRejected(t *testing.T) {
	svc, _, _ := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")
	svc.AssignReviewer(ctx, doc.ID, "reviewer@x.com", "creator-001")
	svc.SubmitForReview(ctx, doc.ID, "editor-001")
	doc, err := svc.Reject(ctx, doc.ID, "reviewer-001", "缺少甲方盖章")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if doc.Status != entity.DocStatusRejected {
		t.Fatalf("status = %s, want REJECTED", doc.Status)
	}

	doc, err = svc.AssignEditor(ctx, doc.ID, "e@x.com", "creator-001")
	if err != nil {
		t.Fatalf("AssignEditor after reject: %v", err)
	}
	if doc.Status != entity.DocStatusEditing {
		t.Errorf("status = %s, want EDITING (re-opened)", doc.Status)
	}
}

func TestSubmitForReviewInvalidState(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001"}, "creator-001")
	logsBefore := countLogs(t, db, doc.ID)

	_, err := svc.SubmitForReview(ctx, doc.ID, "creator-001")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState from DRAFT, got %v", err)
	}

	// 失败的操作不能留下任何写入
	after, _ := svc.Get(ctx, doc.ID)
	if after.Status != entity.DocStatusDraft {
		t.Errorf("status changed to %s", after.Status)
	}
	if countLogs(t, db, doc.ID) != logsBefore {
		t.Error("failed operation must not append audit entries")
	}
}

func TestApproveRejectGuards(t *testing.T) {
	svc, _, db := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")
	svc.AssignReviewer(ctx, doc.ID, "reviewer@x.com", "creator-001")
	logsBefore := countLogs(t, db, doc.ID)

	// EDITING状态下审核人不能通过或驳回
	if _, err := svc.Approve(ctx, doc.ID, "reviewer-001", ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("approve from EDITING: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Reject(ctx, doc.ID, "reviewer-001", "理由"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("reject from EDITING: expected ErrInvalidState, got %v", err)
	}

	svc.SubmitForReview(ctx, doc.ID, "editor-001")

	// 非审核人不能审核
	if _, err := svc.Approve(ctx, doc.ID, "editor-001", ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("approve by editor: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Reject(ctx, doc.ID, "creator-001", "理由"); !errors.Is(err, ErrForbidden) {
		t.Errorf("reject by creator: expected ErrForbidden, got %v", err)
	}

	after, _ := svc.Get(ctx, doc.ID)
	if after.Status != entity.DocStatusReadyForReview {
		t.Errorf("status = %s, guards must leave status unchanged", after.Status)
	}
	// submit 追加了1条，被拒的操作一条都不加
	if countLogs(t, db, doc.ID) != logsBefore+1 {
		t.Errorf("task logs = %d, want %d", countLogs(t, db, doc.ID), logsBefore+1)
	}
}

func TestCanReview(t *testing.T) {
	svc, _, _ := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")
	svc.AssignReviewer(ctx, doc.ID, "reviewer@x.com", "creator-001")

	if svc.CanReview(ctx, doc.ID, "reviewer-001") {
		t.Error("EDITING状态不可审核")
	}
	if svc.CanReview(ctx, doc.ID, "editor-001") {
		t.Error("没有REVIEWER角色不可审核")
	}
	if svc.CanReview(ctx, "no-such-doc", "reviewer-001") {
		t.Error("文档不存在时返回false")
	}

	svc.SubmitForReview(ctx, doc.ID, "editor-001")
	if !svc.CanReview(ctx, doc.ID, "reviewer-001") {
		t.Error("READY_FOR_REVIEW + REVIEWER应该可审核")
	}
}

func TestHistory(t *testing.T) {
	svc, hist, _ := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001", EditorEmail: "e@x.com"}, "creator-001")
	svc.UpdateData(ctx, doc.ID, entity.JSONB{"title": "v2"}, "editor-001")
	svc.SubmitForReview(ctx, doc.ID, "editor-001")

	items, err := hist.List(ctx, doc.ID, "editor-001")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("history items = %d, want 4", len(items))
	}
	// 倒序：最新的在最前面
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Errorf("history not newest-first at index %d", i)
		}
	}
	// 角色标签按当前分配实时计算
	for _, item := range items {
		if item.AssignedUserEmail == "e@x.com" && item.RoleLabel != entity.RoleEditor {
			t.Errorf("editor entry labeled %s", item.RoleLabel)
		}
		if item.AssignedUserEmail == "creator@x.com" && item.RoleLabel != entity.RoleCreator {
			t.Errorf("creator entry labeled %s", item.RoleLabel)
		}
	}
}

func TestHistoryForbiddenForNonParticipant(t *testing.T) {
	svc, hist, _ := setupWorkflowTest(t)
	ctx := context.Background()

	doc, _ := svc.Create(ctx, CreateDocumentReq{TemplateID: "tpl-001"}, "creator-001")

	// reviewer 尚未参与任何任务
	if _, err := hist.List(ctx, doc.ID, "reviewer-001"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
