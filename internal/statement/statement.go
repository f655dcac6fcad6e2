// Package statement exports a payment's transactions as CSV.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fjacquet/payledger/internal/currencyutils"
	"fjacquet/payledger/internal/dateutils"
	"fjacquet/payledger/internal/logging"
	"fjacquet/payledger/internal/payment"

	"github.com/gocarina/gocsv"
)

// DefaultDelimiter separates columns unless the caller asks for another one.
const DefaultDelimiter = ','

// Row is one transaction line.
type Row struct {
	Date          string `csv:"Date"`
	PaymentID     string `csv:"PaymentID"`
	Kind          string `csv:"Kind"`
	TransactionID string `csv:"TransactionID"`
	ParentID      string `csv:"ParentID"`
	Amount        string `csv:"Amount"`
	Currency      string `csv:"Currency"`
	Status        string `csv:"Status"`
	ShortID       string `csv:"ShortID"`
	OrderID       string `csv:"OrderID"`
}

// Rows returns the payment's transactions in creation order. Amounts keep
// the gateway's four decimals so that the file sums to the ledger exactly.
func Rows(p *payment.Payment) []Row {
	txs := p.Transactions()
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		row := Row{
			PaymentID:     p.ID(),
			Kind:          string(tx.Kind()),
			TransactionID: tx.ID(),
			Amount:        currencyutils.WireAmount(tx.Amount()),
			Currency:      tx.Currency(),
			OrderID:       p.OrderID(),
		}
		if !tx.Date().IsZero() {
			row.Date = dateutils.FormatWireDate(tx.Date())
		}
		if d, ok := tx.(detailed); ok {
			row.Status = string(d.Status())
			row.ShortID = d.ShortID()
		}
		if c, ok := tx.(*payment.Cancellation); ok {
			row.ParentID = c.ParentID()
		}
		rows = append(rows, row)
	}
	return rows
}

type detailed interface {
	Status() payment.Status
	ShortID() string
}

// Writer renders statements with a fixed delimiter.
type Writer struct {
	delimiter rune
	logger    logging.Logger
}

// NewWriter returns a Writer; a zero delimiter means DefaultDelimiter.
func NewWriter(delimiter rune, logger logging.Logger) *Writer {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Writer{delimiter: delimiter, logger: logger}
}

// Write renders p to out, header first.
func (w *Writer) Write(out io.Writer, p *payment.Payment) error {
	if p == nil {
		return fmt.Errorf("cannot export a nil payment")
	}
	rows := Rows(p)

	csvWriter := csv.NewWriter(out)
	csvWriter.Comma = w.delimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		w.logger.WithError(err).Error("Failed to marshal statement")
		return fmt.Errorf("error writing statement: %w", err)
	}
	w.logger.Debug("Wrote statement",
		logging.F(logging.FieldPaymentID, p.ID()),
		logging.F(logging.FieldCount, len(rows)))
	return nil
}

// WriteFile renders p into path, creating its directory when needed.
func (w *Writer) WriteFile(path string, p *payment.Payment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating statement file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			w.logger.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := w.Write(file, p); err != nil {
		return err
	}
	w.logger.Info("Exported statement",
		logging.F(logging.FieldOutputFile, path),
		logging.F(logging.FieldPaymentID, p.ID()))
	return nil
}

// ReadFile parses a statement written by WriteFile.
func ReadFile(path string, delimiter rune) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening statement: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	var rows []Row
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("error parsing statement: %w", err)
	}
	return rows, nil
}
