package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/spendbook/internal/handler"
	"github.com/dafibh/spendbook/internal/repository/filestore"
	"github.com/dafibh/spendbook/internal/service"
	"github.com/dafibh/spendbook/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo := filestore.NewExpenseRepository(filepath.Join(dir, "data.json"))
	e := echo.New()
	handler.RegisterRoutes(e, handler.NewExpenseHandler(service.NewExpenseService(repo)), nil, nil)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	t.Setenv("API_URL", srv.URL)
	t.Setenv("BUDGET_FILE", filepath.Join(dir, "budget.json"))
	t.Setenv("CURRENCY_SYMBOL", "$")
	return dir
}

func runCmd(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out)
	return code, out.String()
}

func TestRun_Usage(t *testing.T) {
	code, out := runCmd(t, "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Usage: spend")
}

func TestRun_UnknownCommand(t *testing.T) {
	setupEnv(t)
	code, out := runCmd(t, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, `unknown command "frobnicate"`)
}

func TestRun_AddListDelete(t *testing.T) {
	setupEnv(t)

	code, out := runCmd(t, "", "add", "-amount", "42.50", "-category", "Food", "-note", "pizza")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "pizza")

	code, out = runCmd(t, "", "list", "-category", "Food")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "pizza")
	assert.Contains(t, out, "$42.50")

	code, out = runCmd(t, "", "add", "-amount", "-3", "-category", "Food")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, out)
}

func TestRun_DeleteAsksForConfirmation(t *testing.T) {
	setupEnv(t)

	code, out := runCmd(t, "", "delete", "-id", "missing")
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "Delete this expense?")
	assert.NotContains(t, out, "Deleted.")
}

func TestRun_Budget(t *testing.T) {
	dir := setupEnv(t)

	code, out := runCmd(t, "", "budget", "-set", "500")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Monthly budget saved.")
	assert.FileExists(t, filepath.Join(dir, "budget.json"))

	code, out = runCmd(t, "", "budget", "-set", "-1")
	assert.Equal(t, 1, code, out)
}

func TestRun_ExportEmpty(t *testing.T) {
	dir := setupEnv(t)

	code, _ := runCmd(t, "", "export", "-o", filepath.Join(dir, "out.json"))
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, filepath.Join(dir, "out.json"))
}

func TestRun_ReportPreviousMonth(t *testing.T) {
	setupEnv(t)
	year, month := util.PreviousMonth(time.Now().Year(), time.Now().Month())
	date := time.Date(year, month, 15, 0, 0, 0, 0, time.Local).Format("2006-01-02")

	code, out := runCmd(t, "", "add", "-amount", "30", "-category", "Bills", "-date", date)
	require.Equal(t, 0, code, out)

	code, out = runCmd(t, "", "report", "-prev")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, fmt.Sprintf("Monthly Report for %d/%d", int(month), year))
	assert.Contains(t, out, "- Bills: $30.00")
}

func TestRun_CategoryFlagListsConfiguredCategories(t *testing.T) {
	setupEnv(t)
	t.Setenv("CATEGORIES", "Food,Rent")

	code, out := runCmd(t, "", "add", "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "one of Food, Rent")
}
