package main

import (
	"github.com/fadilmartias/resume-insight/internal/bootstrap"
	"github.com/fadilmartias/resume-insight/internal/extract"
	"github.com/spf13/cobra"
)

func newExtractCmd(root *rootOptions) *cobra.Command {
	var minLength int
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text extracted from a resume file",
		Long:  "Extracts text from a PDF, DOCX, plain text or image resume, using OCR when the file has no text layer.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger()
			defer func() { _ = log.Sync() }()

			ex := bootstrap.NewExtractor(cmd.Context(), log)
			ex.MinLength = minLength
			doc, err := readResume(cmd.Context(), ex, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().IntVar(&minLength, "min-length", extract.DefaultMinLength, "Reject documents with less text than this")
	return cmd
}
