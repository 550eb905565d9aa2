package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWMDriver はGPIOのPWM出力でLEDを駆動する
type PWMDriver struct {
	mu        sync.Mutex
	pins      []gpio.PinIO
	frequency physic.Frequency
	closed    bool
}

// NewPWMDriver はホストのGPIOを初期化し、ピン名の並び順でチャンネルを割り当てる
func NewPWMDriver(pinNames []string, frequencyHz int) (*PWMDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("GPIOの初期化に失敗: %w", err)
	}

	pins := make([]gpio.PinIO, 0, len(pinNames))
	for _, name := range pinNames {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("GPIOピンが見つかりません: %s", name)
		}
		// 起動時は消灯
		if err := pin.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("GPIOピン %s の初期化に失敗: %w", name, err)
		}
		pins = append(pins, pin)
	}

	return &PWMDriver{
		pins:      pins,
		frequency: physic.Frequency(frequencyHz) * physic.Hertz,
	}, nil
}

// Set は指定チャンネルのPWMデューティ比を変更する
func (d *PWMDriver) Set(channel, duty int) error {
	if err := checkDuty(duty); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrChannelClosed
	}
	if channel < 0 || channel >= len(d.pins) {
		return fmt.Errorf("チャンネル %d: %w", channel, ErrNoChannel)
	}

	pin := d.pins[channel]
	if duty == 0 {
		if err := pin.Out(gpio.Low); err != nil {
			return fmt.Errorf("%s の消灯に失敗: %w", pin.Name(), err)
		}
		return nil
	}

	if err := pin.PWM(gpio.DutyMax/100*gpio.Duty(duty), d.frequency); err != nil {
		return fmt.Errorf("%s のPWM設定に失敗: %w", pin.Name(), err)
	}
	return nil
}

// Close は全ピンを消灯して停止する
func (d *PWMDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for _, pin := range d.pins {
		if err := pin.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s の消灯に失敗: %w", pin.Name(), err)
		}
		if err := pin.Halt(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s の停止に失敗: %w", pin.Name(), err)
		}
	}
	return firstErr
}
