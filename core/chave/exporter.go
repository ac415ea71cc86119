package chave

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	ExportFilename    = "relatorio_chaves.xlsx"
	ExportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	exportSheet      = "Chaves"
	exportTimeLayout = "2006-01-02 15:04"
)

var exportHeader = []interface{}{
	"Chave", "Projetista", "NS", "Poste/Ponto", "Coordenada", "Polo", "Município", "Observação",
	"Dt de Inclusão", "Dt de Modificação",
}

// ExportSelection writes the chaves of `ids` to w, in the order of `ids`. Unknown ids are skipped.
func (svc *Service) ExportSelection(ctx context.Context, w io.Writer, ids []int) error {
	if len(ids) == 0 {
		return WriteReport(w, nil)
	}
	chaves, err := svc.repo.QueryChaves(ctx, QueryFilter{IDs: ids}, nil, 0, 0)
	if err != nil {
		return errors.Wrap(err, "querying chaves")
	}
	byID := make(map[int]Chave, len(chaves))
	for _, chv := range chaves {
		byID[chv.ID] = chv
	}
	ordered := make([]Chave, 0, len(chaves))
	for _, id := range ids {
		if chv, ok := byID[id]; ok {
			ordered = append(ordered, chv)
			delete(byID, id) // a repeated id is exported once
		}
	}
	return WriteReport(w, ordered)
}

// Export writes every chave matching the filter to w, ordered by id.
func (svc *Service) Export(ctx context.Context, w io.Writer, filter QueryFilter) error {
	chaves, err := svc.Query(ctx, filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying chaves")
	}
	return WriteReport(w, chaves)
}

// WriteReport writes the chaves report workbook: one header row and one row per chave.
func WriteReport(w io.Writer, chaves []Chave) error {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return errors.Wrap(err, "creating stream writer")
	}
	if err := sw.SetRow("A1", exportHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, chv := range chaves {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, reportRow(chv)); err != nil {
			return errors.Wrapf(err, "writing chave %s", chv.Chave)
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flushing rows")
	}
	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

func reportRow(chv Chave) []interface{} {
	return []interface{}{
		chv.Chave,
		chv.Projetista.String,
		chv.NS.String,
		chv.Poste.String,
		chv.Coordenada.String,
		chv.Polo.String,
		chv.Municipio.String,
		chv.Observacao.String,
		formatReportTime(chv.DataInclusao),
		formatReportTime(chv.DataModificacao),
	}
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(exportTimeLayout)
}
