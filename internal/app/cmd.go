package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションとOAuth stateの定期掃除を行う。
	CommandWorker Command = "worker"
	// CommandMigrate はマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のAPIサーバーの/healthを叩いて終了する。
	// distrolessイメージのDocker HEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// RequiresConfig はコマンドの実行に設定の読み込み（DATABASE_URL等）が必要かを返す。
// healthcheckはSERVER_PORTだけで動くため不要。
func (c Command) RequiresConfig() bool {
	return c != CommandHealthcheck
}
