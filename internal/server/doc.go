// Package server は、顕微鏡デバイスサービスのHTTP APIを提供します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - API定義（internal/generated/openapi.yaml）に沿ったリクエスト検証
//   - 顕微鏡一覧・LED制御・キャプチャ・センサー・システム情報の各エンドポイント
//   - WebSocketによるシステム情報の定期配信
//
// エラーはステータスコードで表します。
//   - 400: 入力の検証エラー
//   - 404: 未知の顕微鏡ID
//   - 500: LED・カメラ・ファイル操作の失敗
//   - 503: センサーの読み取り失敗
//
// エラーのボディは常に {success:false, error, message, timestamp} です。
package server
