package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/0xcafe-io/iz"
	"github.com/google/uuid"

	"github.com/mishacol/balance-tracker/internal/auth"
	"github.com/mishacol/balance-tracker/internal/backup"
	"github.com/mishacol/balance-tracker/internal/contextutil"
	"github.com/mishacol/balance-tracker/internal/finance"
	"github.com/mishacol/balance-tracker/internal/money"
	"github.com/mishacol/balance-tracker/logging"
)

type Api struct {
	Service *finance.Tracker
	Backups *backup.Manager
}

func NewApi(service *finance.Tracker, backups *backup.Manager) *Api {
	return &Api{
		Service: service,
		Backups: backups,
	}
}

// authorize resolves the Authorization header into a user id and a
// trace-carrying context. A nil responder means the request is authorized.
func (api *Api) authorize(r *iz.Request) (context.Context, string, iz.Responder) {
	ctx := contextutil.WithTraceID(r.Context(), uuid.New().String())

	token := r.Header.Get("Authorization")
	if token == "" {
		msg := "authorization failed: Authorization header is required."
		return ctx, "", iz.Respond().Status(401).Text(msg)
	}

	userId, err := api.Service.CheckSession(ctx, token)
	if err != nil {
		msg := fmt.Sprintf("authorization failed: %s", err.Error())
		return ctx, "", iz.Respond().Status(401).Text(msg)
	}
	return ctx, userId, nil
}

// --- USER ENDPOINTS --- //

func (api *Api) SaveUserHandler(r *iz.Request) iz.Responder {
	ctx := contextutil.WithTraceID(r.Context(), uuid.New().String())

	var newUserReq SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&newUserReq); err != nil {
		msg := fmt.Sprintf("invalid request body: %s", err.Error())
		return iz.Respond().Status(400).Text(msg)
	}

	newUser := auth.NewUser{
		UserName:      newUserReq.UserName,
		Email:         newUserReq.Email,
		PasswordPlain: newUserReq.Password,
	}

	if err := newUser.ValidateUserFields(); err != nil {
		return iz.Respond().Status(httpStatusFromError(err)).Text(err.Error())
	}

	token, err := api.Service.SaveUser(ctx, newUser)
	if err != nil {
		msg := fmt.Sprintf("registration failed: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}

	resp := UserCreatedResponse{
		Message: "Registration Completed",
		Token:   token,
	}
	return iz.Respond().Status(201).JSON(resp)
}

func (api *Api) LoginUserHandler(r *iz.Request) iz.Responder {
	ctx := contextutil.WithTraceID(r.Context(), uuid.New().String())

	var loginRequest UserLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		return iz.Respond().Status(400).Text("invalid request body")
	}

	credentials := auth.UserCredentialsPure{
		UserName:      loginRequest.UserName,
		PasswordPlain: loginRequest.Password,
	}

	response := LoginResponse{}

	token, err := api.Service.GenerateSession(ctx, credentials)
	if err != nil {
		response.Message = err.Error()
		return iz.Respond().Status(httpStatusFromError(err)).JSON(response)
	}
	response.Message = "You've logged in successfully!"
	response.Token = token
	return iz.Respond().Status(200).JSON(response)
}

func (api *Api) LogoutUserHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	if err := api.Service.LogoutUser(ctx, userId, r.Header.Get("Authorization")); err != nil {
		msg := fmt.Sprintf("logout failed: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).Text("Logout successful.")
}

func (api *Api) CheckToken(r *iz.Request) iz.Responder {
	_, _, denied := api.authorize(r)
	if denied != nil {
		return denied
	}
	return iz.Respond().Status(200).Text("token is valid")
}

func (api *Api) GetAccountInfo(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	profile, err := api.Service.GetProfile(ctx, userId)
	if err != nil {
		logging.Logger.Errorf("Failed to get account info: %v", err)
		msg := fmt.Sprintf("failed to get account info: %s", err.Error())
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).JSON(ProfileToHttp(profile))
}

// --- PROFILE ENDPOINTS --- //

func (api *Api) GetProfileHandler(r *iz.Request) iz.Responder {
	return api.GetAccountInfo(r)
}

func (api *Api) UpdateProfileHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := fmt.Sprintf("failed to parse update profile request: %v", err)
		return iz.Respond().Status(400).Text(msg)
	}

	target, err := money.ParseAmount(req.MonthlyIncomeTarget)
	if err != nil {
		msg := fmt.Sprintf("invalid monthly income target: %s", req.MonthlyIncomeTarget)
		return iz.Respond().Status(400).Text(msg)
	}

	fields := finance.UpdateProfileRequest{
		BaseCurrency:        req.BaseCurrency,
		MonthlyIncomeTarget: target,
		BackupMode:          finance.BackupMode(req.BackupMode),
	}

	profile, err := api.Service.UpdateProfile(ctx, userId, fields)
	if err != nil {
		msg := fmt.Sprintf("failed to update profile: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).JSON(ProfileToHttp(profile))
}

// --- TRANSACTION ENDPOINTS --- //

func (api *Api) SaveTransactionHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.Logger.Errorf("Failed to parse save transaction request: %v", err)
		msg := fmt.Sprintf("failed to parse save transaction request: %v", err)
		return iz.Respond().Status(400).Text(msg)
	}

	newTransaction, err := TransactionToDomain(req)
	if err != nil {
		return iz.Respond().Status(httpStatusFromError(err)).Text(err.Error())
	}

	created, err := api.Service.SaveTransaction(ctx, userId, newTransaction)
	if err != nil {
		msg := fmt.Sprintf("failed to create transaction: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(201).JSON(TransactionToHttp(created))
}

func (api *Api) GetFilteredTransactionsHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	filters, err := ListValidateParams(r.URL.Query())
	if err != nil {
		msg := fmt.Sprintf("invalid filter parameters: %s", err.Error())
		return iz.Respond().Status(400).Text(msg)
	}

	ts, err := api.Service.GetFilteredTransactions(ctx, userId, filters)
	if err != nil {
		logging.Logger.Errorf("Failed to get filtered transactions request: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text("failed to get transactions")
	}

	var container ListTransactionResponse
	container.Transactions = make([]TransactionItem, 0, len(ts))
	for _, t := range ts {
		container.Transactions = append(container.Transactions, TransactionToHttp(t))
	}
	return iz.Respond().Status(200).JSON(container)
}

func (api *Api) GetTransactionByIdHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	tId := r.PathValue("id")

	t, err := api.Service.GetTransactionByID(ctx, userId, tId)
	if err != nil {
		logging.Logger.Errorf("Failed to get transaction by Id request: %v", err)
		msg := fmt.Sprintf("failed to get transaction by ID: %s", err.Error())
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).JSON(TransactionToHttp(t))
}

func (api *Api) UpdateTransactionHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := fmt.Sprintf("failed to parse update transaction request: %v", err)
		return iz.Respond().Status(400).Text(msg)
	}

	domain, err := TransactionToDomain(req)
	if err != nil {
		return iz.Respond().Status(httpStatusFromError(err)).Text(err.Error())
	}

	fields := finance.UpdateTransactionRequest{
		ID:          r.PathValue("id"),
		Type:        domain.Type,
		Amount:      domain.Amount,
		Currency:    domain.Currency,
		Category:    domain.Category,
		Description: domain.Description,
		Date:        domain.Date,
	}

	updated, err := api.Service.UpdateTransaction(ctx, userId, fields)
	if err != nil {
		msg := fmt.Sprintf("failed to update transaction: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).JSON(TransactionToHttp(updated))
}

func (api *Api) DeleteTransactionHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	tId := r.PathValue("id")

	if err := api.Service.DeleteTransaction(ctx, userId, tId); err != nil {
		logging.Logger.Errorf("Failed to delete transaction request: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text("failed to delete transaction")
	}
	return iz.Respond().Status(200).Text("transaction deleted successfully")
}

// --- ANALYTICS ENDPOINTS --- //

func (api *Api) GetSummaryHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	from, to, err := PeriodParams(r.URL.Query())
	if err != nil {
		return iz.Respond().Status(httpStatusFromError(err)).Text(err.Error())
	}

	summary, err := api.Service.Summary(ctx, userId, from, to)
	if err != nil {
		logging.Logger.Errorf("Failed to get summary: %v", err)
		msg := fmt.Sprintf("failed to get summary: %s", err.Error())
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).JSON(SummaryToHttp(summary))
}

func (api *Api) GetCategoryTotalsHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	from, to, err := PeriodParams(r.URL.Query())
	if err != nil {
		return iz.Respond().Status(httpStatusFromError(err)).Text(err.Error())
	}

	totals, err := api.Service.CategoryTotals(ctx, userId, from, to)
	if err != nil {
		logging.Logger.Errorf("Failed to get category totals: %v", err)
		msg := fmt.Sprintf("failed to get category totals: %s", err.Error())
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}

	items := make([]CategoryTotalItem, 0, len(totals))
	for _, c := range totals {
		items = append(items, CategoryTotalItem{
			Category: c.Category,
			Total:    c.Total.StringFixed(2),
			Percent:  c.Percent,
		})
	}
	return iz.Respond().Status(200).JSON(items)
}

func (api *Api) GetTrendHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	from, to, err := PeriodParams(r.URL.Query())
	if err != nil {
		return iz.Respond().Status(httpStatusFromError(err)).Text(err.Error())
	}

	trend, err := api.Service.Trend(ctx, userId, from, to)
	if err != nil {
		logging.Logger.Errorf("Failed to get trend: %v", err)
		msg := fmt.Sprintf("failed to get trend: %s", err.Error())
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).JSON(TrendToHttp(trend))
}

func (api *Api) GetCategoriesHandler(r *iz.Request) iz.Responder {
	_, _, denied := api.authorize(r)
	if denied != nil {
		return denied
	}
	return iz.Respond().Status(200).JSON(finance.KnownCategories)
}

// --- BACKUP ENDPOINTS --- //

func (api *Api) CreateBackupHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	var req CreateBackupRequest
	if r.Body != nil {
		// body is optional, a bare POST makes an undescribed backup
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	snapshot, err := api.Backups.Create(ctx, userId, req.Description, finance.BackupModeManual)
	if err != nil {
		msg := fmt.Sprintf("failed to create backup: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(201).JSON(BackupToHttp(snapshot))
}

func (api *Api) ListBackupsHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	snapshots, err := api.Backups.List(ctx, userId)
	if err != nil {
		logging.Logger.Errorf("Failed to list backups: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text("failed to get backups")
	}

	var container ListBackupsResponse
	container.Backups = make([]BackupItem, 0, len(snapshots))
	for _, s := range snapshots {
		container.Backups = append(container.Backups, BackupToHttp(s))
	}
	return iz.Respond().Status(200).JSON(container)
}

func (api *Api) RestoreBackupHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	backupId := r.PathValue("id")

	restored, err := api.Backups.Restore(ctx, userId, backupId)
	if err != nil {
		msg := fmt.Sprintf("failed to restore backup: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}

	resp := RestoreResponse{
		Message:  "Backup restored, current transactions were replaced.",
		Restored: restored,
	}
	return iz.Respond().Status(200).JSON(resp)
}

func (api *Api) DeleteBackupHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	backupId := r.PathValue("id")

	if err := api.Backups.Delete(ctx, userId, backupId); err != nil {
		msg := fmt.Sprintf("failed to delete backup: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}
	return iz.Respond().Status(200).Text("backup deleted successfully")
}

func (api *Api) ImportHandler(r *iz.Request) iz.Responder {
	ctx, userId, denied := api.authorize(r)
	if denied != nil {
		return denied
	}

	var doc backup.ExportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		msg := fmt.Sprintf("failed to parse import file: %v", err)
		return iz.Respond().Status(400).Text(msg)
	}

	imported, err := api.Backups.Import(ctx, userId, doc)
	if err != nil {
		msg := fmt.Sprintf("failed to import: %v", err)
		return iz.Respond().Status(httpStatusFromError(err)).Text(msg)
	}

	resp := ImportResponse{
		Message:  "Import completed, current transactions were replaced.",
		Imported: imported,
	}
	return iz.Respond().Status(200).JSON(resp)
}

// ExportHandler streams the export document as a file download. Plain
// http.HandlerFunc because of the attachment headers.
func (api *Api) ExportHandler(w http.ResponseWriter, r *http.Request) {
	ctx := contextutil.WithTraceID(r.Context(), uuid.New().String())

	token := r.Header.Get("Authorization")
	if token == "" {
		http.Error(w, "authorization failed: Authorization header is required.", 401)
		return
	}

	userId, err := api.Service.CheckSession(ctx, token)
	if err != nil {
		http.Error(w, fmt.Sprintf("authorization failed: %s", err.Error()), 401)
		return
	}

	includeBackups := r.URL.Query().Get("include_backups") == "true"

	doc, err := api.Backups.Export(ctx, userId, includeBackups)
	if err != nil {
		logging.Logger.Errorf("Failed to export user data: %v", err)
		http.Error(w, "failed to export data", httpStatusFromError(err))
		return
	}

	filename := fmt.Sprintf("balance-tracker-export-%s.json", doc.ExportDate.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		logging.Logger.Errorf("Failed to write export response: %v", err)
	}
}
