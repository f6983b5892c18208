package google

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"crm/internal/core"
	ports "crm/internal/sheets"
)

func parseToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token has neither access nor refresh token")
	}
	return &tok, nil
}

// parseLedger converts a values matrix (as returned by Sheets API) into ledger
// rows. The header and rows without a number or a parsable total are skipped.
func parseLedger(values [][]interface{}) []ports.LedgerRow {
	var out []ports.LedgerRow
	for _, raw := range values {
		cols := toStrings(raw)
		number := safeGet(cols, 0)
		if number == "" || strings.EqualFold(number, "number") {
			continue
		}
		rawTotal := safeGet(cols, 6)
		total, err := core.ParseMoney(rawTotal)
		if err != nil && !isZeroAmount(rawTotal) {
			continue
		}
		row := ports.LedgerRow{Number: number, Total: total}
		row.InvoiceID, _ = strconv.ParseInt(safeGet(cols, 1), 10, 64)
		row.ClientID, _ = strconv.ParseInt(safeGet(cols, 2), 10, 64)
		if pid, err := strconv.ParseInt(safeGet(cols, 3), 10, 64); err == nil {
			row.ProjectID = &pid
		}
		row.IssueDate, _ = core.ParseDate(safeGet(cols, 4))
		row.DueDate, _ = core.ParseDate(safeGet(cols, 5))
		out = append(out, row)
	}
	return out
}

func isZeroAmount(s string) bool {
	return s != "" && strings.Trim(s, "0.,") == ""
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
