package main

import (
	"net/http"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	_ "net/http/pprof"
)

func main() {
	log, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(log)
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.AddConfigPath("./")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	err := viper.ReadInConfig()
	if err != nil {
		log.Sugar().Fatal("init config error:", err)
	}

	err = viper.Unmarshal(&DefConfig)
	if err != nil {
		log.Sugar().Fatal("init config unmarshal error:", err)
	}
	DefConfig.Client.norm()

	go func() {
		http.ListenAndServe(DefConfig.PprofHost, nil)
	}()

	store, err := newDBStore()
	if err != nil {
		log.Sugar().Fatal("init store error:", err)
	}

	var sessions SessionChecker
	if DefConfig.Session.Enable {
		ss, err := NewSessionStore(DefConfig.Session)
		if err != nil {
			log.Sugar().Fatal("init session store error:", err)
		}
		defer ss.Close()
		sessions = ss
		log.Sugar().Info("Session store enabled:", DefConfig.Session.Host)
	}

	node := newNode(store, NewVerifier(DefConfig.Secret, sessions))

	m := http.NewServeMux()
	m.HandleFunc("/ws", node.serveWs)
	m.HandleFunc("/history", node.history)
	log.Sugar().Info("Start:", DefConfig.Host)
	err = http.ListenAndServe(DefConfig.Host, m)
	if err != nil {
		log.Sugar().Fatal("ListenAndServe: ", err)
	}
}
