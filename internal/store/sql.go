package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bracket-app/internal/model"
)

// dialect carries what differs between the SQL backends. Queries are written
// with ? placeholders and rebound per dialect.
type dialect struct {
	name               string
	numbered           bool
	lockSuffix         string
	viewOpts           *sql.TxOptions
	migrationsTableDDL string
	timeArg            func(time.Time) any
	classify           func(error) error
}

func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore is the database/sql implementation shared by SQLite and Postgres.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) View(ctx context.Context, fn func(r Reader) error) error {
	tx, err := s.db.BeginTx(ctx, s.d.viewOpts)
	if err != nil {
		return s.d.wrap("begin view", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqlTx{tx: tx, d: s.d})
}

func (s *sqlStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.d.wrap("begin update", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&sqlTx{tx: tx, d: s.d}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		classified := s.d.classify(err)
		if errors.Is(classified, ErrTransactionFailed) {
			return fmt.Errorf("commit: %w", classified)
		}
		return fmt.Errorf("commit: %w: %v", ErrTransactionFailed, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (d dialect) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, d.classify(err))
}

type sqlTx struct {
	tx *sql.Tx
	d  dialect
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	userColumns       = `id, name, account_type, club_ids, api_key_hash`
	tournamentColumns = `id, club_id, name, status, duration_minutes, margin_minutes, created_at`
	stageColumns      = `id, tournament_id, name, position, created_at`
	stageItemColumns  = `id, stage_id, name, type, team_ids, rules, created_at`
	teamColumns       = `id, tournament_id, name, created_at`
	roundColumns      = `id, stage_item_id, name, is_draft, is_active, created_at`
	matchColumns      = `id, round_id, team1_id, team2_id, team1_score, team2_score, status, created_at`
)

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, t.d.wrap(op, err)
	}
	return res, nil
}

func (t *sqlTx) getOne(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return t.d.wrap(op, err)
}

func checkAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func queryList[T any](ctx context.Context, t *sqlTx, op string, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, t.d.wrap(op, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, t.d.wrap(op, err)
	}
	return out, nil
}

func (t *sqlTx) GetUser(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(t.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return model.User{}, t.getOne("user "+id, err)
	}
	return u, nil
}

func (t *sqlTx) GetTournament(ctx context.Context, id string) (model.Tournament, error) {
	tournament, err := scanTournament(t.queryRow(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ?`, id))
	if err != nil {
		return model.Tournament{}, t.getOne("tournament "+id, err)
	}
	return tournament, nil
}

func (t *sqlTx) ListStages(ctx context.Context, tournamentID string) ([]model.Stage, error) {
	return queryList(ctx, t, "list stages", scanStage,
		`SELECT `+stageColumns+` FROM stages WHERE tournament_id = ? ORDER BY position, id`, tournamentID)
}

func (t *sqlTx) GetStage(ctx context.Context, id string) (model.Stage, error) {
	st, err := scanStage(t.queryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id))
	if err != nil {
		return model.Stage{}, t.getOne("stage "+id, err)
	}
	return st, nil
}

func (t *sqlTx) ListStageItems(ctx context.Context, stageID string) ([]model.StageItem, error) {
	return queryList(ctx, t, "list stage items", scanStageItem,
		`SELECT `+stageItemColumns+` FROM stage_items WHERE stage_id = ? ORDER BY id`, stageID)
}

func (t *sqlTx) GetStageItem(ctx context.Context, id string) (model.StageItem, error) {
	item, err := scanStageItem(t.queryRow(ctx, `SELECT `+stageItemColumns+` FROM stage_items WHERE id = ?`, id))
	if err != nil {
		return model.StageItem{}, t.getOne("stage item "+id, err)
	}
	return item, nil
}

func (t *sqlTx) ListTeams(ctx context.Context, tournamentID string) ([]model.Team, error) {
	return queryList(ctx, t, "list teams", scanTeam,
		`SELECT `+teamColumns+` FROM teams WHERE tournament_id = ? ORDER BY id`, tournamentID)
}

func (t *sqlTx) ListRounds(ctx context.Context, stageItemID string) ([]model.Round, error) {
	return queryList(ctx, t, "list rounds", scanRound,
		`SELECT `+roundColumns+` FROM rounds WHERE stage_item_id = ? ORDER BY created_at, id`, stageItemID)
}

func (t *sqlTx) ListTournamentRounds(ctx context.Context, tournamentID string) ([]model.Round, error) {
	return queryList(ctx, t, "list tournament rounds", scanRound,
		`SELECT r.id, r.stage_item_id, r.name, r.is_draft, r.is_active, r.created_at
FROM rounds r
JOIN stage_items si ON si.id = r.stage_item_id
JOIN stages s ON s.id = si.stage_id
WHERE s.tournament_id = ?
ORDER BY r.created_at, r.id`, tournamentID)
}

func (t *sqlTx) GetRound(ctx context.Context, id string) (model.Round, error) {
	r, err := scanRound(t.queryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = ?`, id))
	if err != nil {
		return model.Round{}, t.getOne("round "+id, err)
	}
	return r, nil
}

func (t *sqlTx) ListMatches(ctx context.Context, roundID string) ([]model.Match, error) {
	return queryList(ctx, t, "list matches", scanMatch,
		`SELECT `+matchColumns+` FROM matches WHERE round_id = ? ORDER BY created_at, id`, roundID)
}

func (t *sqlTx) GetMatch(ctx context.Context, id string) (model.Match, error) {
	m, err := scanMatch(t.queryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id))
	if err != nil {
		return model.Match{}, t.getOne("match "+id, err)
	}
	return m, nil
}

func (t *sqlTx) lock(ctx context.Context, table, id string) error {
	var got string
	err := t.queryRow(ctx, `SELECT id FROM `+table+` WHERE id = ?`+t.d.lockSuffix, id).Scan(&got)
	if err != nil {
		return t.getOne("lock "+table+" "+id, err)
	}
	return nil
}

func (t *sqlTx) LockTournament(ctx context.Context, id string) error {
	return t.lock(ctx, "tournaments", id)
}

func (t *sqlTx) LockStageItem(ctx context.Context, id string) error {
	return t.lock(ctx, "stage_items", id)
}

func (t *sqlTx) LockRound(ctx context.Context, id string) error {
	return t.lock(ctx, "rounds", id)
}

func (t *sqlTx) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = NewID()
	}
	if user.AccountType == "" {
		user.AccountType = model.AccountRegular
	}
	if user.ClubIDs == nil {
		user.ClubIDs = []string{}
	}
	_, err := t.exec(ctx, "create user", `INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?)`,
		user.ID, user.Name, string(user.AccountType), string(toJSON(user.ClubIDs)), user.APIKeyHash,
	)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (t *sqlTx) CreateTournament(ctx context.Context, tournament model.Tournament) (model.Tournament, error) {
	if tournament.ID == "" {
		tournament.ID = NewID()
	}
	if tournament.Status == "" {
		tournament.Status = model.TournamentOpen
	}
	if tournament.CreatedAt.IsZero() {
		tournament.CreatedAt = time.Now()
	}
	_, err := t.exec(ctx, "create tournament", `INSERT INTO tournaments (`+tournamentColumns+`) VALUES (?,?,?,?,?,?,?)`,
		tournament.ID, tournament.ClubID, tournament.Name, string(tournament.Status),
		tournament.DurationMinutes, tournament.MarginMinutes, t.d.timeArg(tournament.CreatedAt),
	)
	if err != nil {
		return model.Tournament{}, err
	}
	return tournament, nil
}

func (t *sqlTx) CreateStage(ctx context.Context, stage model.Stage) (model.Stage, error) {
	if stage.ID == "" {
		stage.ID = NewID()
	}
	if stage.CreatedAt.IsZero() {
		stage.CreatedAt = time.Now()
	}
	_, err := t.exec(ctx, "create stage", `INSERT INTO stages (`+stageColumns+`) VALUES (?,?,?,?,?)`,
		stage.ID, stage.TournamentID, stage.Name, stage.Position, t.d.timeArg(stage.CreatedAt),
	)
	if err != nil {
		return model.Stage{}, err
	}
	return stage, nil
}

func (t *sqlTx) CreateStageItem(ctx context.Context, item model.StageItem) (model.StageItem, error) {
	if item.ID == "" {
		item.ID = NewID()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.TeamIDs == nil {
		item.TeamIDs = []string{}
	}
	var rules any
	if item.Rules != nil {
		rules = string(toJSON(item.Rules))
	}
	_, err := t.exec(ctx, "create stage item", `INSERT INTO stage_items (`+stageItemColumns+`) VALUES (?,?,?,?,?,?,?)`,
		item.ID, item.StageID, item.Name, string(item.Type), string(toJSON(item.TeamIDs)), rules, t.d.timeArg(item.CreatedAt),
	)
	if err != nil {
		return model.StageItem{}, err
	}
	return item, nil
}

func (t *sqlTx) CreateTeam(ctx context.Context, team model.Team) (model.Team, error) {
	if team.ID == "" {
		team.ID = NewID()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now()
	}
	_, err := t.exec(ctx, "create team", `INSERT INTO teams (`+teamColumns+`) VALUES (?,?,?,?)`,
		team.ID, team.TournamentID, team.Name, t.d.timeArg(team.CreatedAt),
	)
	if err != nil {
		return model.Team{}, err
	}
	return team, nil
}

func (t *sqlTx) CreateRound(ctx context.Context, round model.Round) (model.Round, error) {
	if round.ID == "" {
		round.ID = NewID()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now()
	}
	_, err := t.exec(ctx, "create round", `INSERT INTO rounds (`+roundColumns+`) VALUES (?,?,?,?,?,?)`,
		round.ID, round.StageItemID, round.Name, round.IsDraft, round.IsActive, t.d.timeArg(round.CreatedAt),
	)
	if err != nil {
		return model.Round{}, err
	}
	return round, nil
}

func (t *sqlTx) UpdateRound(ctx context.Context, round model.Round) error {
	op := "update round " + round.ID
	res, err := t.exec(ctx, op, `UPDATE rounds SET name = ?, is_draft = ?, is_active = ? WHERE id = ?`,
		round.Name, round.IsDraft, round.IsActive, round.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, op)
}

func (t *sqlTx) DeleteRound(ctx context.Context, id string) error {
	op := "delete round " + id
	res, err := t.exec(ctx, op, `DELETE FROM rounds WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, op)
}

func (t *sqlTx) CreateMatch(ctx context.Context, match model.Match) (model.Match, error) {
	if match.ID == "" {
		match.ID = NewID()
	}
	if match.Status == "" {
		match.Status = model.MatchPending
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	_, err := t.exec(ctx, "create match", `INSERT INTO matches (`+matchColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		match.ID, match.RoundID, match.Team1ID, match.Team2ID, match.Team1Score, match.Team2Score,
		string(match.Status), t.d.timeArg(match.CreatedAt),
	)
	if err != nil {
		return model.Match{}, err
	}
	return match, nil
}

func (t *sqlTx) UpdateMatch(ctx context.Context, match model.Match) error {
	op := "update match " + match.ID
	res, err := t.exec(ctx, op, `UPDATE matches SET team1_id = ?, team2_id = ?, team1_score = ?, team2_score = ?, status = ? WHERE id = ?`,
		match.Team1ID, match.Team2ID, match.Team1Score, match.Team2Score, string(match.Status), match.ID,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, op)
}

func (t *sqlTx) DeleteMatch(ctx context.Context, id string) error {
	op := "delete match " + id
	res, err := t.exec(ctx, op, `DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, op)
}

func scanUser(scanner rowScanner) (model.User, error) {
	var u model.User
	var accountType string
	var clubJSON sql.NullString
	if err := scanner.Scan(&u.ID, &u.Name, &accountType, &clubJSON, &u.APIKeyHash); err != nil {
		return model.User{}, err
	}
	u.AccountType = model.AccountType(accountType)
	if clubJSON.Valid && clubJSON.String != "" {
		_ = json.Unmarshal([]byte(clubJSON.String), &u.ClubIDs)
	}
	return u, nil
}

func scanTournament(scanner rowScanner) (model.Tournament, error) {
	var tournament model.Tournament
	var status string
	var createdAt sql.NullString
	if err := scanner.Scan(&tournament.ID, &tournament.ClubID, &tournament.Name, &status,
		&tournament.DurationMinutes, &tournament.MarginMinutes, &createdAt); err != nil {
		return model.Tournament{}, err
	}
	tournament.Status = model.TournamentStatus(status)
	tournament.CreatedAt, _ = parseTimeString(createdAt.String)
	return tournament, nil
}

func scanStage(scanner rowScanner) (model.Stage, error) {
	var st model.Stage
	var createdAt sql.NullString
	if err := scanner.Scan(&st.ID, &st.TournamentID, &st.Name, &st.Position, &createdAt); err != nil {
		return model.Stage{}, err
	}
	st.CreatedAt, _ = parseTimeString(createdAt.String)
	return st, nil
}

func scanStageItem(scanner rowScanner) (model.StageItem, error) {
	var item model.StageItem
	var itemType string
	var teamJSON, rulesJSON, createdAt sql.NullString
	if err := scanner.Scan(&item.ID, &item.StageID, &item.Name, &itemType, &teamJSON, &rulesJSON, &createdAt); err != nil {
		return model.StageItem{}, err
	}
	item.Type = model.StageItemType(itemType)
	if teamJSON.Valid && teamJSON.String != "" {
		_ = json.Unmarshal([]byte(teamJSON.String), &item.TeamIDs)
	}
	if rulesJSON.Valid && rulesJSON.String != "" && rulesJSON.String != "null" {
		var rules model.RankingRules
		if err := json.Unmarshal([]byte(rulesJSON.String), &rules); err == nil {
			item.Rules = &rules
		}
	}
	item.CreatedAt, _ = parseTimeString(createdAt.String)
	return item, nil
}

func scanTeam(scanner rowScanner) (model.Team, error) {
	var team model.Team
	var createdAt sql.NullString
	if err := scanner.Scan(&team.ID, &team.TournamentID, &team.Name, &createdAt); err != nil {
		return model.Team{}, err
	}
	team.CreatedAt, _ = parseTimeString(createdAt.String)
	return team, nil
}

func scanRound(scanner rowScanner) (model.Round, error) {
	var r model.Round
	var createdAt sql.NullString
	if err := scanner.Scan(&r.ID, &r.StageItemID, &r.Name, &r.IsDraft, &r.IsActive, &createdAt); err != nil {
		return model.Round{}, err
	}
	r.CreatedAt, _ = parseTimeString(createdAt.String)
	return r, nil
}

func scanMatch(scanner rowScanner) (model.Match, error) {
	var m model.Match
	var status string
	var createdAt sql.NullString
	if err := scanner.Scan(&m.ID, &m.RoundID, &m.Team1ID, &m.Team2ID, &m.Team1Score, &m.Team2Score, &status, &createdAt); err != nil {
		return model.Match{}, err
	}
	m.Status = model.MatchStatus(status)
	m.CreatedAt, _ = parseTimeString(createdAt.String)
	return m, nil
}

func toJSON(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}

func parseTimeString(value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}
