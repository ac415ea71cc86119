package chave

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/janus/core"
)

const importDateLayout = "2006-01-02 15:04:05"

// ImportFormat describes the spreadsheet Import expects.
var ImportFormat = map[string]interface{}{
	"header":  false,
	"sheet":   "primeira planilha",
	"columns": []string{"chave", "data_chamado", "chamado"},
	"formato": "data_chamado no formato AAAA-MM-DD HH:MM:SS",
}

type importRow struct {
	index   int
	code    string
	date    string
	chamado string
}

// Import creates a chave for every row of the first sheet of an xlsx file: code, ticket date and ticket.
// Rows with a bad date or an existing code are skipped and reported; nothing is rolled back.
// A file that cannot be read yields a single error message.
func (svc *Service) Import(ctx context.Context, filename string, r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, errors.Wrap(err, "reading spreadsheet")
	}
	svc.archive(ctx, filename, data)

	result := ImportResult{Messages: []core.Message{}}
	rows, err := readImportRows(data)
	if err != nil {
		result.Messages = append(result.Messages, core.NewMessage(core.LevelError, "Erro: %v", err))
		svc.logger.Warn("spreadsheet import failed", err, map[string]interface{}{"file": filename})
		return result, nil
	}

	for _, row := range rows {
		msg, created, err := svc.importRow(ctx, row)
		if err != nil {
			// same outcome as an unreadable file, rows already created are kept
			result.Messages = append(result.Messages, core.NewMessage(core.LevelError, "Erro: %v", errors.Cause(err)))
			svc.logger.Error("spreadsheet import aborted", err, map[string]interface{}{"file": filename, "row": row.index})
			return result, nil
		}
		if created {
			result.Created++
			continue
		}
		result.Messages = append(result.Messages, msg)
		svc.logger.Info(msg.Message, map[string]interface{}{"file": filename})
	}

	result.Messages = append(result.Messages, core.NewMessage(core.LevelSuccess, "%d registros foram criados.", result.Created))
	svc.logger.Info(fmt.Sprintf("spreadsheet import: %d chaves created", result.Created), map[string]interface{}{"file": filename})
	return result, nil
}

func (svc *Service) archive(ctx context.Context, filename string, data []byte) {
	if svc.files == nil {
		return
	}
	name := fmt.Sprintf("importacoes/%s-%s", nowFunc().UTC().Format("20060102T150405"), filename)
	if _, err := svc.files.Upload(ctx, data, name); err != nil {
		svc.logger.Warn("archiving spreadsheet", err, map[string]interface{}{"file": filename})
	}
}

// importRow returns the row message when the row is skipped.
func (svc *Service) importRow(ctx context.Context, row importRow) (core.Message, bool, error) {
	date, ok := parseImportDate(row.date)
	if !ok {
		return core.NewMessage(core.LevelError, "Formato de data inválido na linha %d", row.index), false, nil
	}
	if row.code == "" || len([]rune(row.code)) > 6 {
		return core.NewMessage(core.LevelError, "Chave inválida na linha %d", row.index), false, nil
	}

	if _, err := svc.repo.GetChaveByCode(ctx, row.code); err == nil {
		return core.NewMessage(core.LevelWarning, "A chave %s já existe no banco de dados.", row.code), false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return core.Message{}, false, err
	}

	now := time.Now().UTC()
	_, err := svc.repo.CreateChave(ctx, Chave{
		Chave:           row.code,
		Chamado:         null.NewString(row.chamado, row.chamado != ""),
		DataChamado:     null.TimeFrom(date),
		DataInclusao:    now,
		DataModificacao: now,
	})
	if err != nil {
		if errors.Cause(err) == ErrChaveExists { // created concurrently
			return core.NewMessage(core.LevelWarning, "A chave %s já existe no banco de dados.", row.code), false, nil
		}
		return core.Message{}, false, err
	}
	return core.Message{}, true, nil
}

func readImportRows(data []byte) ([]importRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("planilha vazia")
	}
	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	rows := make([]importRow, 0, len(cells))
	for i, cols := range cells {
		row := importRow{index: i}
		if len(cols) > 0 {
			row.code = cleanCell(cols[0])
		}
		if len(cols) > 1 {
			row.date = strings.TrimSpace(cols[1])
		}
		if len(cols) > 2 {
			row.chamado = cleanCell(cols[2])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// cleanCell drops the decimal part numeric cells get, e.g. 123456.0
func cleanCell(val string) string {
	val = strings.TrimSpace(val)
	if f, err := strconv.ParseFloat(val, 64); err == nil && f == float64(int64(f)) && strings.Contains(val, ".") {
		return strconv.FormatInt(int64(f), 10)
	}
	return val
}

// parseImportDate accepts the text layout and native Excel date cells (serial numbers).
func parseImportDate(val string) (time.Time, bool) {
	if val == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(importDateLayout, val); err == nil {
		return t, true
	}
	if serial, err := strconv.ParseFloat(val, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
