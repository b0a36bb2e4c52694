package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hitoshi/grailtracker/internal/bridge"
	"github.com/hitoshi/grailtracker/internal/config"
	"github.com/hitoshi/grailtracker/internal/database"
)

// serverlessPoolConfig は関数インスタンスごとのコネクションプール設定。
// インスタンスが多数並列に起動するため、1インスタンスあたりの接続は最小限にする。
var serverlessPoolConfig = database.PoolConfig{
	MaxOpenConns:    2,
	MaxIdleConns:    1,
	ConnMaxLifetime: database.DefaultPoolConfig().ConnMaxLifetime,
}

var (
	serverlessOnce   sync.Once
	serverlessBridge *bridge.Bridge
	serverlessErr    error
)

// Serverless は関数ランタイム向けのBridgeを返す。
// 初回呼び出しで設定の読み込みと依存関係の構築を行い、以後はウォームスタートで再利用する。
// 掃除は定期実行せず、ヘルスチェックからのバックグラウンド実行に任せる。
func Serverless() (*bridge.Bridge, error) {
	serverlessOnce.Do(func() {
		serverlessBridge, serverlessErr = newServerless()
	})
	return serverlessBridge, serverlessErr
}

func newServerless() (*bridge.Bridge, error) {
	cfg, err := Init(os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL, serverlessPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newBridge(cfg, db)
}

func newBridge(cfg *config.Config, db *sql.DB) (*bridge.Bridge, error) {
	components, err := Build(cfg, db, slog.Default())
	if err != nil {
		db.Close()
		return nil, err
	}
	return bridge.New(components.Handler, slog.Default()), nil
}
