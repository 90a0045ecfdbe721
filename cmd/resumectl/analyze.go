package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fadilmartias/resume-insight/internal/bootstrap"
	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/dto"
	"github.com/fadilmartias/resume-insight/internal/model"
	"github.com/fadilmartias/resume-insight/internal/repository"
	"github.com/fadilmartias/resume-insight/internal/usecase"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	role     string
	location string
	timeout  time.Duration
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Run every analysis agent over a resume file",
		Long:  "Parses the resume, scores it, profiles personality, compares it with --role and matches job listings, then prints the combined result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.role, "role", "r", "", "Target role for scoring and skill gap analysis")
	cmd.Flags().StringVarP(&opts.location, "location", "l", "", "Location for job matching")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Give up after this long")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	log := root.logger()
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	ex := bootstrap.NewExtractor(ctx, log)
	doc, err := readResume(ctx, ex, path)
	if err != nil {
		return err
	}

	up := newUpstream(ctx, log)
	defer up.Close()

	llmConfig := config.LoadLLMConfig()
	llm, gemini, err := bootstrap.NewCompleter(ctx, bootstrap.LLMConfigs{
		LLM:        llmConfig,
		OpenRouter: config.LoadOpenRouterConfig(),
		Gemini:     config.LoadGeminiConfig(),
	}, up.dispatcher, up.policy, log)
	if err != nil {
		return err
	}

	tasks := repository.NewMemoryTaskRepository()
	uc := usecase.NewAnalysisUsecase(usecase.Deps{
		Tasks:     tasks,
		Extractor: ex,
		Agents:    bootstrap.NewAgents(llm, llmConfig, up.search, gemini, nil, log),
		Stats:     up.dispatcher,
		Log:       log,
	})

	task := &model.AnalysisTask{
		ID:         uuid.New(),
		FileName:   path,
		ResumeText: doc.Text,
		TargetRole: opts.role,
		Location:   opts.location,
		Status:     model.StatusProcessing,
		CreatedAt:  time.Now(),
	}
	if err := tasks.CreateTask(ctx, task); err != nil {
		return err
	}
	if err := uc.Run(ctx, task, usecase.ResumeImages(doc)); err != nil {
		return fmt.Errorf("analyze %s: %w", path, err)
	}
	return printJSON(cmd.OutOrStdout(), dto.NewAnalysisTaskDTO(task))
}
