package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"VoxelBench/deploy/migrations"
	"VoxelBench/internal/sim/score"
)

// SQLStore 使用 MySQL 存储评测记录，适合多进程跑批共享同一份结果。
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore 创建连接池并初始化 build_records 表。
func NewSQLStore(dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	// build_records 的建表语句由版本化迁移维护，与任务表共用版本记录。
	if err := migrations.Run(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("执行数据库迁移失败: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Append 将评测记录写入 MySQL。
func (s *SQLStore) Append(ctx context.Context, record Record) error {
	commands, err := marshalList(record.Commands)
	if err != nil {
		return err
	}
	violations, err := marshalList(record.Violations)
	if err != nil {
		return err
	}
	errList, err := marshalList(record.Errors)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO build_records
        (task_id, target_string, difficulty, model_id,
         score_shape_overlap, score_components, score_s3, score_mean,
         mc_score_shape_overlap, mc_score_components, mc_score_s3, mc_score_mean,
         raw_output, commands, violations, errors, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.TaskID,
		record.String,
		record.Difficulty,
		record.ModelID,
		record.Metrics.ShapeOverlap,
		record.Metrics.Components,
		record.Metrics.Adjacency,
		record.Metrics.Mean,
		record.MCShapeOverlap,
		record.MCComponents,
		record.MCAdjacency,
		record.MCMean,
		record.RawOutput,
		commands,
		violations,
		errList,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条评测记录。
func (s *SQLStore) ListLatest(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT task_id, target_string, difficulty, model_id,
        score_shape_overlap, score_components, score_s3, score_mean,
        mc_score_shape_overlap, mc_score_components, mc_score_s3, mc_score_mean,
        raw_output, commands, violations, errors, created_at
        FROM build_records ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询评测记录失败: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var record Record
		var metrics score.Metrics
		var rawOutput, commands, violations, errList sql.NullString
		if err := rows.Scan(
			&record.TaskID,
			&record.String,
			&record.Difficulty,
			&record.ModelID,
			&metrics.ShapeOverlap,
			&metrics.Components,
			&metrics.Adjacency,
			&metrics.Mean,
			&record.MCShapeOverlap,
			&record.MCComponents,
			&record.MCAdjacency,
			&record.MCMean,
			&rawOutput,
			&commands,
			&violations,
			&errList,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("解析评测记录失败: %w", err)
		}
		record.Metrics = metrics
		record.RawOutput = rawOutput.String
		if record.Commands, err = unmarshalList(commands.String); err != nil {
			return nil, err
		}
		if record.Violations, err = unmarshalList(violations.String); err != nil {
			return nil, err
		}
		if record.Errors, err = unmarshalList(errList.String); err != nil {
			return nil, err
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历评测记录失败: %w", err)
	}
	return results, nil
}

// Close 关闭底层数据库连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func marshalList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("序列化列表字段失败: %w", err)
	}
	return string(encoded), nil
}

func unmarshalList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("解析列表字段失败: %w", err)
	}
	return values, nil
}

var _ Store = (*SQLStore)(nil)
