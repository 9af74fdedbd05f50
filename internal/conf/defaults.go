// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "FruitCount-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "fruitcount.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("detector.modelpath", "model/yolov8n_float32.tflite")
	viper.SetDefault("detector.labelpath", "")
	viper.SetDefault("detector.modelname", "yolov8n")
	viper.SetDefault("detector.classes", []string{"apple", "banana", "orange"})
	viper.SetDefault("detector.confidence", 0.15)
	viper.SetDefault("detector.iou", 0.5)
	viper.SetDefault("detector.imagesize", 760)
	viper.SetDefault("detector.threads", 0)
	viper.SetDefault("detector.usexnnpack", true)
	viper.SetDefault("detector.debug", false)

	viper.SetDefault("upload.path", "uploads/")
	viper.SetDefault("upload.maxfilesize", 20*1024*1024)
	viper.SetDefault("upload.allowedextensions", []string{".jpg", ".jpeg", ".png"})

	viper.SetDefault("artifacts.enabled", true)
	viper.SetDefault("artifacts.path", "outputs/")
	viper.SetDefault("artifacts.quality", 90)
	viper.SetDefault("artifacts.keepfaileduploads", false)

	viper.SetDefault("fetch.enabled", false)
	viper.SetDefault("fetch.timeout", 30)
	viper.SetDefault("fetch.maxbytes", 20*1024*1024)
	viper.SetDefault("fetch.requestspersecond", 2.0)
	viper.SetDefault("fetch.burst", 2)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "webui.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)

	viper.SetDefault("security.host", "")
	viper.SetDefault("security.autotls", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "fruitcount.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "fruitcount")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "fruitcount")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "fruitcount")
	viper.SetDefault("mqtt.username", "fruitcount")
	viper.SetDefault("mqtt.password", "secret")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("export.enabled", false)
	viper.SetDefault("export.type", "ftp")
	viper.SetDefault("export.host", "")
	viper.SetDefault("export.port", "21")
	viper.SetDefault("export.username", "")
	viper.SetDefault("export.password", "")
	viper.SetDefault("export.keyfile", "")
	viper.SetDefault("export.path", "fruitcount/")
	viper.SetDefault("export.timeout", 15)

	viper.SetDefault("observability.enabled", false)
	viper.SetDefault("observability.listen", "localhost:9090")
}
