// Package camera 顕微鏡に接続されたUSBカメラの検出と静止画取得を担う
//
// # 責務
// - V4L2デバイス（/dev/video*）の検出と実名取得
// - 1フレームのJPEGキャプチャ
//
// # 使い分け
// このパッケージはデバイス単位の低レベル操作のみを扱う。
// 顕微鏡ID・LED・排他制御は microscope パッケージが担う。
//
// # 前提要件
//   - v4l-utils: カメラ名の取得とフォーマット判定に使用
//     Ubuntu/Debian/Raspberry Pi OS: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャに使用
//     Ubuntu/Debian/Raspberry Pi OS: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
