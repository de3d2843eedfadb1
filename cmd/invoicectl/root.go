package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"invoicedesk/internal/client"
	"invoicedesk/internal/editor"
	"invoicedesk/internal/models"
)

const defaultServer = "http://localhost:5000"

type app struct {
	in      *bufio.Reader
	out     io.Writer
	server  string
	timeout time.Duration
	api     *client.Client
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: bufio.NewReader(in), out: out}

	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Upload, extract and manage invoices on an invoicedesk server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.api = client.New(a.server, a.timeout)
		},
	}
	root.SetOut(out)

	server := os.Getenv("INVOICEDESK_URL")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "server base URL (env INVOICEDESK_URL)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 2*time.Minute, "per-request timeout")

	root.AddCommand(
		a.uploadCmd(),
		a.downloadCmd(),
		a.fileInfoCmd(),
		a.rmFileCmd(),
		a.extractCmd(),
		a.listCmd(),
		a.getCmd(),
		a.editCmd(),
		a.deleteCmd(),
		a.exportCmd(),
		a.processCmd(),
		a.healthCmd(),
	)
	return root
}

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF and print its file id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.upload(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\n", res.FileID, res.FileName)
			return nil
		},
	}
}

func (a *app) downloadCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <fileId>",
		Short: "Save a stored PDF to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := a.api.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rc.Close()

			if output == "" {
				output = args[0] + ".pdf"
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := io.Copy(f, rc)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(a.out, "wrote %d bytes to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <fileId>.pdf)")
	return cmd
}

func (a *app) fileInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-info <fileId>",
		Short: "Show stored file metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.api.Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(info)
		},
	}
}

func (a *app) rmFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm-file <fileId>",
		Short: "Delete a stored PDF (invoice records are not touched)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.DeleteFile(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "file %s deleted\n", args[0])
			return nil
		},
	}
}

func (a *app) extractCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "extract <fileId>",
		Short: "Run AI extraction on an uploaded file and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.api.Extract(cmd.Context(), args[0], model)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{"model": res.Model, "data": res.Invoice})
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gemini", "extraction backend: gemini or groq")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var (
		term   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent invoices, optionally filtered by vendor name or number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.api.List(cmd.Context(), term)
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(recs)
			}
			a.printTable(recs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&term, "query", "q", "", "search term")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one invoice record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(rec)
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	var e edits
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a saved invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s := editor.Load(*rec)
			if err := e.apply(s); err != nil {
				return err
			}
			saved, err := s.Save(cmd.Context(), a.api)
			if err != nil {
				return err
			}
			return a.printJSON(saved)
		},
	}
	e.register(cmd)
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an invoice record (the PDF is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !yes && !a.confirm(fmt.Sprintf("Delete invoice %s from %s?", rec.InvoiceDetails.Number, rec.Vendor.Name)) {
				fmt.Fprintln(a.out, "aborted")
				return nil
			}
			if err := editor.Load(*rec).Delete(cmd.Context(), a.api); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "invoice %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var term, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the invoice list as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.api.Export(cmd.Context(), term)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&term, "query", "q", "", "search term")
	cmd.Flags().StringVarP(&output, "output", "o", "invoices.xlsx", "output path")
	return cmd
}

func (a *app) processCmd() *cobra.Command {
	var (
		model string
		e     edits
	)
	cmd := &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Upload a PDF, extract it, apply field overrides and save the record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := a.upload(cmd, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "uploaded %s as %s\n", up.FileName, up.FileID)

			s := editor.NewSession(up.FileID, up.FileName)
			res, err := a.api.Extract(cmd.Context(), up.FileID, model)
			if err != nil {
				return fmt.Errorf("extract %s: %w", up.FileID, err)
			}
			if err := s.ApplyExtraction(res.Invoice); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "extracted with %s\n", res.Model)

			if err := e.apply(s); err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return fmt.Errorf("%w (set the missing fields with --vendor, --number or --date; file id %s)", err, up.FileID)
			}
			rec, err := s.Save(cmd.Context(), a.api)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved invoice %s\n", rec.ID.Hex())
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "gemini", "extraction backend: gemini or groq")
	e.register(cmd)
	return cmd
}

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server and store connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.api.Health(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(h)
		},
	}
}

func (a *app) upload(cmd *cobra.Command, path string) (*client.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return a.api.Upload(cmd.Context(), path, f)
}

func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", question)
	answer, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printTable(recs []models.InvoiceRecord) {
	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"ID", "Vendor", "Number", "Date", "Total", "Currency", "Items", "Created"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	for _, r := range recs {
		table.Append([]string{
			r.ID.Hex(),
			r.Vendor.Name,
			r.InvoiceDetails.Number,
			r.InvoiceDetails.Date,
			strconv.FormatFloat(r.InvoiceDetails.Total, 'f', 2, 64),
			r.InvoiceDetails.Currency,
			strconv.Itoa(len(r.LineItems)),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	fmt.Fprintf(a.out, "%d invoice(s)\n", len(recs))
}
