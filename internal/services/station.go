// Package services orchestrates the generation phases around the station
// pipeline: prompt assembly, model calls, dual-save persistence and audit.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/revalidafacil/stations-backend/internal/clients/gemini"
	rediscache "github.com/revalidafacil/stations-backend/internal/clients/redis"
	"github.com/revalidafacil/stations-backend/internal/localstore"
	"github.com/revalidafacil/stations-backend/internal/logger"
	"github.com/revalidafacil/stations-backend/internal/prompts"
	"github.com/revalidafacil/stations-backend/internal/repos"
	"github.com/revalidafacil/stations-backend/internal/station/pipeline"
	"github.com/revalidafacil/stations-backend/internal/station/schema"
	"github.com/revalidafacil/stations-backend/internal/types"
)

// ErrStationNotFound is returned by AuditStation for unknown ids.
var ErrStationNotFound = errors.New("services: station not found")

// ErrNoDatabase is returned by operations that need the station table when
// the service is running on local files only.
var ErrNoDatabase = errors.New("services: no database configured")

const batchConcurrency = 3

type GenerateRequest struct {
	Tema          string `json:"tema"`
	Especialidade string `json:"especialidade"`
	Abordagem     string `json:"abordagem,omitempty"`
}

type GenerateResult struct {
	ID        uuid.UUID      `json:"id"`
	Document  map[string]any `json:"document"`
	Report    *schema.Report `json:"report"`
	LocalFile string         `json:"local_file,omitempty"`
	Synced    bool           `json:"synced"`
	FromCache bool           `json:"from_cache"`
}

type BatchResult struct {
	Request GenerateRequest `json:"request"`
	Result  *GenerateResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// StationService chains the generation phases. repo and cache may be nil:
// persistence then degrades to local files only.
type StationService struct {
	log   *logger.Logger
	llm   gemini.Client
	pipe  *pipeline.Pipeline
	repo  repos.StationRepo
	local *localstore.Store
	cache *rediscache.StationCache
}

func NewStationService(
	log *logger.Logger,
	llm gemini.Client,
	pipe *pipeline.Pipeline,
	repo repos.StationRepo,
	local *localstore.Store,
	cache *rediscache.StationCache,
) (*StationService, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	if llm == nil {
		return nil, errors.New("gemini client required")
	}
	if pipe == nil {
		return nil, errors.New("pipeline required")
	}
	if local == nil {
		return nil, errors.New("local store required")
	}
	return &StationService{
		log:   log.With("service", "StationService"),
		llm:   llm,
		pipe:  pipe,
		repo:  repo,
		local: local,
		cache: cache,
	}, nil
}

// GenerateStation runs phases 1 to 3, the repair pipeline and the dual save.
func (s *StationService) GenerateStation(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if strings.TrimSpace(req.Tema) == "" {
		return nil, errors.New("tema required")
	}

	if s.cache != nil {
		if doc, err := s.cache.Get(ctx, req.Tema, req.Especialidade); err == nil {
			s.log.Info("estação recuperada do cache", "tema", req.Tema)
			return &GenerateResult{Document: doc, Report: schema.NewReport(), FromCache: true}, nil
		}
	}

	result, err := s.generate(ctx, req, false)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && result.Report.IsValid {
		if err := s.cache.Set(ctx, req.Tema, req.Especialidade, result.Document); err != nil {
			s.log.Warn("falha ao gravar no cache", "error", err)
		}
	}
	return result, nil
}

// GenerateBatch generates several stations concurrently. Database writes are
// skipped: batch output goes to local files only, for later review.
func (s *StationService) GenerateBatch(ctx context.Context, reqs []GenerateRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i].Request = req
			res, err := s.generate(gctx, req, true)
			if err != nil {
				s.log.Error("falha na geração em lote", "tema", req.Tema, "error", err)
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AuditStation runs the phase-4 analysis over a stored station.
func (s *StationService) AuditStation(ctx context.Context, id uuid.UUID, feedback string) (string, error) {
	doc, err := s.loadStation(ctx, id)
	if err != nil {
		return "", err
	}
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode station for audit: %w", err)
	}
	analysis, err := s.llm.GenerateText(ctx, prompts.Analise(string(pretty), feedback), gemini.PreferAdvanced)
	if err != nil {
		return "", fmt.Errorf("audit call failed: %w", err)
	}
	return analysis, nil
}

// GetStation loads one station, preferring the database and falling back to
// the local files.
func (s *StationService) GetStation(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	return s.loadStation(ctx, id)
}

// ListStations returns the newest stored stations, optionally filtered by
// especialidade. Listing has no local-file fallback.
func (s *StationService) ListStations(ctx context.Context, especialidade string, limit int) ([]*types.Station, error) {
	if s.repo == nil {
		return nil, ErrNoDatabase
	}
	return s.repo.ListByEspecialidade(ctx, especialidade, limit)
}

func (s *StationService) generate(ctx context.Context, req GenerateRequest, skipDB bool) (*GenerateResult, error) {
	s.log.Info("[FASE 1] análise clínica", "tema", req.Tema)
	resumo, err := s.llm.GenerateText(ctx, prompts.Phase1(req.Tema, req.Especialidade), gemini.PreferFast)
	if err != nil {
		return nil, fmt.Errorf("fase 1 falhou: %w", err)
	}

	s.log.Info("[FASE 2] propostas de estação", "tema", req.Tema)
	var abordagens []string
	if strings.TrimSpace(req.Abordagem) != "" {
		abordagens = []string{req.Abordagem}
	}
	propostas, err := s.llm.GenerateText(ctx, prompts.Phase2(req.Tema, req.Especialidade, resumo, abordagens), gemini.PreferFast)
	if err != nil {
		return nil, fmt.Errorf("fase 2 falhou: %w", err)
	}
	proposta := firstProposal(propostas)

	s.log.Info("[FASE 3] geração da estação final", "tema", req.Tema)
	raw, err := s.llm.GenerateText(ctx, prompts.Phase3(req.Tema, req.Especialidade, resumo, proposta), gemini.PreferAdvanced)
	if err != nil {
		return nil, fmt.Errorf("fase 3 falhou: %w", err)
	}

	doc, report := s.pipe.Process(ctx, raw)
	sanitizePadrao(doc)

	return s.persist(ctx, doc, report, req, skipDB)
}

// persist is the dual save: local file always, database best effort.
func (s *StationService) persist(ctx context.Context, doc map[string]any, report *schema.Report, req GenerateRequest, skipDB bool) (*GenerateResult, error) {
	localID, localFile, err := s.local.Save(doc, localstore.Metadata{Tema: req.Tema, Especialidade: req.Especialidade})
	if err != nil {
		return nil, fmt.Errorf("local save failed: %w", err)
	}

	result := &GenerateResult{
		ID:        localID,
		Document:  doc,
		Report:    report,
		LocalFile: localFile,
	}
	if skipDB || s.repo == nil {
		return result, nil
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		s.log.Warn("documento não serializável, mantido apenas localmente", "error", err)
		return result, nil
	}
	titulo, _ := doc["tituloEstacao"].(string)
	station := &types.Station{
		ID:            localID,
		Titulo:        titulo,
		Especialidade: req.Especialidade,
		Payload:       datatypes.JSON(payload),
		IsValid:       report.IsValid,
	}
	if _, err := s.repo.Create(ctx, station); err != nil {
		s.log.Warn("gravação no banco falhou, estação mantida apenas localmente", "id", localID.String(), "error", err)
		return result, nil
	}
	if err := s.local.MarkSynced(localID, station.ID.String()); err != nil {
		s.log.Warn("falha ao atualizar arquivo local após sincronização", "error", err)
	}
	result.Synced = true
	return result, nil
}

func (s *StationService) loadStation(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	if s.repo != nil {
		if station, err := s.repo.GetByID(ctx, id); err == nil {
			var doc map[string]any
			if err := json.Unmarshal(station.Payload, &doc); err == nil {
				return doc, nil
			}
		}
	}
	doc, err := s.local.Load(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	return doc, nil
}

// firstProposal keeps only the first proposal of a "---"-separated answer.
func firstProposal(propostas string) string {
	parts := strings.Split(propostas, "---")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return strings.TrimSpace(propostas)
}

// sanitizePadrao coerces the padraoEsperadoProcedimento block to storable
// scalar types: ids to strings, pontos to numbers, foco and fontes to string
// lists. Unparseable pontos become 0.0.
func sanitizePadrao(doc map[string]any) {
	padrao, ok := doc["padraoEsperadoProcedimento"].(map[string]any)
	if !ok {
		return
	}
	for _, field := range []string{"idChecklistAssociado"} {
		if v, present := padrao[field]; present {
			if _, isStr := v.(string); !isStr {
				padrao[field] = fmt.Sprint(v)
			}
		}
	}
	if sintese, ok := padrao["sinteseEstacao"].(map[string]any); ok {
		if v, present := sintese["resumoCasoPEP"]; present {
			if _, isStr := v.(string); !isStr {
				sintese["resumoCasoPEP"] = fmt.Sprint(v)
			}
		}
		if v, present := sintese["focoPrincipalDetalhado"]; present {
			sintese["focoPrincipalDetalhado"] = toStringList(v)
		}
		if itens, ok := sintese["itensAvaliacao"].([]any); ok {
			sintese["itensAvaliacao"] = sanitizeItens(itens)
		}
	}
	if itens, ok := padrao["itensAvaliacao"].([]any); ok {
		padrao["itensAvaliacao"] = sanitizeItens(itens)
	}
	if feedback, ok := padrao["feedbackEstacao"].(map[string]any); ok {
		if v, present := feedback["resumoTecnico"]; present {
			if _, isStr := v.(string); !isStr {
				feedback["resumoTecnico"] = fmt.Sprint(v)
			}
		}
		if v, present := feedback["fontes"]; present {
			feedback["fontes"] = toStringList(v)
		}
	}
}

func sanitizeItens(itens []any) []any {
	out := make([]any, 0, len(itens))
	for _, raw := range itens {
		item, ok := raw.(map[string]any)
		if !ok {
			out = append(out, map[string]any{
				"idItem":        "item_basico",
				"descricaoItem": fmt.Sprint(raw),
				"pontuacoes": map[string]any{
					"adequado":             map[string]any{"criterio": "Item básico", "pontos": 0.5},
					"parcialmenteAdequado": map[string]any{"criterio": "Item básico parcial", "pontos": 0.25},
					"inadequado":           map[string]any{"criterio": "Item básico inadequado", "pontos": 0.0},
				},
			})
			continue
		}
		for _, field := range []string{"idItem", "descricaoItem"} {
			if v, present := item[field]; present {
				if _, isStr := v.(string); !isStr {
					item[field] = fmt.Sprint(v)
				}
			}
		}
		if pontuacoes, ok := item["pontuacoes"].(map[string]any); ok {
			for _, tier := range []string{"adequado", "parcialmenteAdequado", "inadequado"} {
				tierData, ok := pontuacoes[tier].(map[string]any)
				if !ok {
					continue
				}
				if v, present := tierData["criterio"]; present {
					if _, isStr := v.(string); !isStr {
						tierData["criterio"] = fmt.Sprint(v)
					}
				}
				if v, present := tierData["pontos"]; present {
					tierData["pontos"] = toFloat(v)
				}
			}
		}
		out = append(out, item)
	}
	return out
}

func toStringList(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return []any{fmt.Sprint(v)}
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprint(item))
		}
	}
	return out
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64); err == nil {
			return f
		}
	}
	return 0.0
}
