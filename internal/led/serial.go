package led

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// SerialDriver はUSBシリアル接続のマイコン経由でLEDを駆動する
//
// 1チャンネルの変更ごとに "L<チャンネル> <デューティ>\n" の1行を送る。
type SerialDriver struct {
	mu     sync.Mutex
	port   io.WriteCloser
	closed bool
}

// NewSerialDriver はシリアルポートを開いてSerialDriverを作成する
func NewSerialDriver(portName string, baudRate int) (*SerialDriver, error) {
	c := &serial.Config{
		Name:        portName,
		Baud:        baudRate,
		ReadTimeout: time.Second,
	}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("シリアルポート %s のオープンに失敗: %w", portName, err)
	}

	return newSerialDriver(port), nil
}

func newSerialDriver(port io.WriteCloser) *SerialDriver {
	return &SerialDriver{port: port}
}

// Set はデューティ比変更コマンドを送信する
func (d *SerialDriver) Set(channel, duty int) error {
	if err := checkDuty(duty); err != nil {
		return err
	}
	if channel < 0 {
		return fmt.Errorf("チャンネル %d: %w", channel, ErrNoChannel)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrChannelClosed
	}
	return d.send(channel, duty)
}

func (d *SerialDriver) send(channel, duty int) error {
	cmd := fmt.Sprintf("L%d %d\n", channel, duty)
	if _, err := io.WriteString(d.port, cmd); err != nil {
		return fmt.Errorf("シリアルコマンド送信に失敗 (%q): %w", cmd, err)
	}
	return nil
}

// Close は全消灯コマンドを送ってポートを閉じる
func (d *SerialDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if _, err := io.WriteString(d.port, "OFF\n"); err != nil {
		_ = d.port.Close()
		return fmt.Errorf("全消灯コマンド送信に失敗: %w", err)
	}
	return d.port.Close()
}
