// Package microscope は顕微鏡バンクのレジストリを提供する
//
// 起動時に /dev/video* を列挙して顕微鏡を登録し、以下を管理する:
//   - 顕微鏡ID (microscope_1, microscope_2, ...) とデバイスの対応
//   - 顕微鏡ごとのLED点灯状態と強度（LEDドライバーへの反映と状態ファイルへの保存）
//   - 顕微鏡ごとのキャプチャロックと静止画の保存
//
// 顕微鏡は実行中に削除されない。
package microscope
